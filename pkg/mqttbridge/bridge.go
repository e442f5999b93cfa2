// Package mqttbridge connects the IR core to an MQTT broker: learned codes
// and send results are published, send/stop/learn commands are accepted.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"irgate/pkg/api"
	"irgate/pkg/ircode"
	"irgate/pkg/irsend"
	"irgate/pkg/router"
)

// EndpointID is the hub registration and session id used for requests
// arriving over MQTT.
const EndpointID = "mqtt"

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Config configures a Bridge.
type Config struct {
	Broker         string        // e.g. "tcp://192.168.1.10:1883".
	ClientID       string        // Default "irgate-<random>".
	TopicPrefix    string        // Default "irgate".
	Username       string
	Password       string
	ConnectTimeout time.Duration // Default 10s.
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ClientID == "" {
		out.ClientID = "irgate-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if out.TopicPrefix == "" {
		out.TopicPrefix = "irgate"
	}
	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	return out
}

// Topics are the MQTT topics derived from the prefix.
type Topics struct {
	Status  string // retained online/offline, also the last will
	Learned string // learned codes
	Result  string // send results and refusals
	Send    string // send commands (api.Request JSON)
	Stop    string // stop the active send
	Learn   string // "on" or "off"
}

// TopicsFor builds the topic set for prefix.
func TopicsFor(prefix string) Topics {
	return Topics{
		Status:  prefix + "/status",
		Learned: prefix + "/ir/learned",
		Result:  prefix + "/ir/result",
		Send:    prefix + "/ir/send",
		Stop:    prefix + "/ir/stop",
		Learn:   prefix + "/ir/learn",
	}
}

// Bridge is a hub endpoint backed by an MQTT client.
type Bridge struct {
	cfg     Config
	topics  Topics
	sender  api.Sender
	learner api.Learner
	log     *slog.Logger

	mu  sync.RWMutex
	pub func(topic string, retained bool, payload []byte)
}

// New creates a bridge. Register it with the hub under EndpointID.
func New(cfg Config, sender api.Sender, learner api.Learner, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Bridge{
		cfg:     cfg,
		topics:  TopicsFor(cfg.TopicPrefix),
		sender:  sender,
		learner: learner,
		log:     log,
	}
}

// Topics returns the bridge's topics.
func (b *Bridge) Topics() Topics { return b.topics }

// Run connects to the broker and stays connected until ctx is cancelled.
// The paho client reconnects on its own after the first connection.
func (b *Bridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	opts.SetWill(b.topics.Status, Offline, 1, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, token.Error())
	}
	b.setPublisher(func(topic string, retained bool, payload []byte) {
		client.Publish(topic, 1, retained, payload)
	})

	<-ctx.Done()

	b.setPublisher(nil)
	if token := client.Publish(b.topics.Status, 1, true, Offline); !token.WaitTimeout(time.Second) {
		b.log.Warn("mqtt offline status not confirmed")
	}
	client.Disconnect(250)
	return nil
}

func (b *Bridge) onConnect(c mqtt.Client) {
	b.log.Info("mqtt connected", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID)
	c.Publish(b.topics.Status, 1, true, Online)

	handlers := map[string]func([]byte){
		b.topics.Send:  b.handleSend,
		b.topics.Stop:  b.handleStop,
		b.topics.Learn: b.handleLearn,
	}
	for topic, h := range handlers {
		token := c.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) { h(msg.Payload()) })
		if token.Wait() && token.Error() != nil {
			b.log.Error("mqtt subscribe", "topic", topic, "error", token.Error())
		}
	}
}

func (b *Bridge) setPublisher(pub func(string, bool, []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pub = pub
}

func (b *Bridge) publish(topic string, retained bool, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("mqtt encode", "topic", topic, "error", err)
		return
	}
	b.mu.RLock()
	pub := b.pub
	b.mu.RUnlock()
	if pub == nil {
		b.log.Debug("mqtt not connected, message dropped", "topic", topic)
		return
	}
	pub(topic, retained, data)
}

// Deliver publishes learned codes and results of sends requested over MQTT.
func (b *Bridge) Deliver(ev router.Event) {
	switch ev.Kind {
	case router.Learned:
		b.publish(b.topics.Learned, false, api.EventReply(ev))
	case router.SendResult:
		b.publish(b.topics.Result, false, api.EventReply(ev))
	}
}

func (b *Bridge) handleSend(payload []byte) {
	var req api.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		b.log.Warn("mqtt send: invalid payload", "error", err)
		b.publish(b.topics.Result, false, api.Reply{Type: api.TypeDock, Msg: api.CmdIRSend, Code: api.CodeBadRequest, Error: "invalid json"})
		return
	}
	req.Command = api.CmdIRSend
	format, err := ircode.ParseFormat(req.Format)
	if err != nil || req.Code == "" {
		b.publish(b.topics.Result, false, api.Reply{Type: api.TypeDock, Msg: api.CmdIRSend, ReqID: req.ID, Code: api.CodeBadRequest})
		return
	}
	var id uint32
	if req.ID != nil {
		id = *req.ID
	}
	o := b.sender.Send(irsend.Request{
		Requester:     router.SessionRequester(EndpointID),
		CorrelationID: id,
		Code:          req.Code,
		Format:        format,
		Repeat:        req.Repeat,
		Outputs:       req.Outputs(),
	})
	if o != irsend.Queued {
		b.publish(b.topics.Result, false, api.Reply{Type: api.TypeDock, Msg: api.CmdIRSend, ReqID: req.ID, Code: int(o)})
	}
}

func (b *Bridge) handleStop([]byte) {
	b.sender.Stop()
}

func (b *Bridge) handleLearn(payload []byte) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "1", "true":
		b.learner.Start()
	case "off", "0", "false":
		b.learner.Stop()
	default:
		b.log.Warn("mqtt learn: unknown payload", "payload", string(payload))
	}
}
