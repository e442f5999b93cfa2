package mqttbridge //nolint:testpackage // white-box tests replace the publisher

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irgate/pkg/api"
	"irgate/pkg/hw"
	"irgate/pkg/irsend"
	"irgate/pkg/router"
)

type fakeSender struct {
	outcome irsend.Outcome
	reqs    []irsend.Request
	stops   int
}

func (f *fakeSender) Send(req irsend.Request) irsend.Outcome {
	f.reqs = append(f.reqs, req)
	return f.outcome
}
func (f *fakeSender) Stop()      { f.stops++ }
func (f *fakeSender) Busy() bool { return false }

type fakeLearner struct{ active bool }

func (f *fakeLearner) Start()       { f.active = true }
func (f *fakeLearner) Stop()        { f.active = false }
func (f *fakeLearner) Active() bool { return f.active }

type message struct {
	topic    string
	retained bool
	reply    api.Reply
}

type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) publish(topic string, retained bool, payload []byte) {
	var rep api.Reply
	_ = json.Unmarshal(payload, &rep)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{topic, retained, rep})
}

func newTestBridge(outcome irsend.Outcome) (*Bridge, *fakeSender, *fakeLearner, *recorder) {
	s := &fakeSender{outcome: outcome}
	l := &fakeLearner{}
	rec := &recorder{}
	b := New(Config{Broker: "tcp://127.0.0.1:1883", TopicPrefix: "home/ir"}, s, l, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.setPublisher(rec.publish)
	return b, s, l, rec
}

func TestTopicsFor(t *testing.T) {
	got := TopicsFor("home/ir")
	assert.Equal(t, Topics{
		Status:  "home/ir/status",
		Learned: "home/ir/ir/learned",
		Result:  "home/ir/ir/result",
		Send:    "home/ir/ir/send",
		Stop:    "home/ir/ir/stop",
		Learn:   "home/ir/ir/learn",
	}, got)
}

func TestDefaults(t *testing.T) {
	b := New(Config{Broker: "tcp://x:1883"}, nil, nil, nil)
	assert.Regexp(t, `^irgate-[0-9a-f]{8}$`, b.cfg.ClientID)
	assert.Equal(t, "irgate/status", b.Topics().Status)
}

func TestHandleSendQueued(t *testing.T) {
	b, s, _, rec := newTestBridge(irsend.Queued)

	b.handleSend([]byte(`{"id":3,"code":"4;0x640C;15;0","format":"hex","repeat":2,"ext2":true}`))
	require.Len(t, s.reqs, 1)
	req := s.reqs[0]
	assert.Equal(t, router.SessionRequester(EndpointID), req.Requester)
	assert.Equal(t, uint32(3), req.CorrelationID)
	assert.Equal(t, uint16(2), req.Repeat)
	assert.Equal(t, hw.External2, req.Outputs)
	assert.Empty(t, rec.msgs, "queued sends answer through the hub")

	b.Deliver(router.Event{Recipient: req.Requester, Kind: router.SendResult, CorrelationID: 3, Success: true})
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "home/ir/ir/result", rec.msgs[0].topic)
	assert.Equal(t, api.CodeOK, rec.msgs[0].reply.Code)
	require.NotNil(t, rec.msgs[0].reply.ReqID)
	assert.Equal(t, uint32(3), *rec.msgs[0].reply.ReqID)
}

func TestHandleSendRefused(t *testing.T) {
	b, s, _, rec := newTestBridge(irsend.TooManyRequests)

	b.handleSend([]byte(`{"id":4,"code":"4;0x640C;15;0","format":"hex"}`))
	require.Len(t, s.reqs, 1)
	assert.Equal(t, hw.InternalSide|hw.External1|hw.External2, s.reqs[0].Outputs)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, int(irsend.TooManyRequests), rec.msgs[0].reply.Code)
}

func TestHandleSendInvalid(t *testing.T) {
	b, s, _, rec := newTestBridge(irsend.Queued)

	b.handleSend([]byte(`{{`))
	b.handleSend([]byte(`{"id":5,"code":"1;0x1;8;0","format":"raw"}`))
	b.handleSend([]byte(`{"id":6,"format":"hex"}`))
	assert.Empty(t, s.reqs)
	require.Len(t, rec.msgs, 3)
	for _, m := range rec.msgs {
		assert.Equal(t, api.CodeBadRequest, m.reply.Code)
	}
}

func TestLearnAndStop(t *testing.T) {
	b, s, l, _ := newTestBridge(irsend.Queued)

	b.handleLearn([]byte("on"))
	assert.True(t, l.active)
	b.handleLearn([]byte(" OFF\n"))
	assert.False(t, l.active)
	b.handleLearn([]byte("maybe"))
	assert.False(t, l.active)

	b.handleStop(nil)
	assert.Equal(t, 1, s.stops)
}

func TestDeliverLearned(t *testing.T) {
	b, _, _, rec := newTestBridge(irsend.Queued)

	b.Deliver(router.Event{Recipient: router.BroadcastRequester(), Kind: router.Learned, Success: true, Code: "3;0x20DF10EF;32;0"})
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "home/ir/ir/learned", rec.msgs[0].topic)
	assert.False(t, rec.msgs[0].retained)
	assert.Equal(t, "3;0x20DF10EF;32;0", rec.msgs[0].reply.IRCode)
}

func TestDeliverWithoutConnection(t *testing.T) {
	b, _, _, rec := newTestBridge(irsend.Queued)
	b.setPublisher(nil)
	b.Deliver(router.Event{Kind: router.Learned, Code: "1;0x1;8;0"})
	assert.Empty(t, rec.msgs)
}
