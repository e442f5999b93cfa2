package journal

import (
	"fmt"

	"irgate/pkg/irlearn"
	"irgate/pkg/irsend"
	"irgate/pkg/router"
)

// ObserveSend queues a finished send. It matches irsend.Config.OnComplete.
func (j *Journal) ObserveSend(req irsend.Request, success bool) {
	j.Enqueue(Entry{
		Type:          TypeSend,
		Source:        req.Requester.Kind.String(),
		Requester:     requesterName(req.Requester),
		CorrelationID: req.CorrelationID,
		Success:       success,
		Code:          req.Code,
		Detail:        fmt.Sprintf("format=%s repeat=%d outputs=%s", req.Format, req.Repeat, req.Outputs),
	})
}

// ObserveLearn queues a decode attempt. It matches irlearn.Config.OnResult.
func (j *Journal) ObserveLearn(l irlearn.LearnedCode) {
	if l.OK() {
		j.Enqueue(Entry{Type: TypeLearned, Source: "learn", Success: true, Code: l.Code})
		return
	}
	j.Enqueue(Entry{Type: TypeLearnFailed, Source: "learn", Detail: l.Failure.String()})
}

func requesterName(r router.Requester) string {
	switch r.Kind {
	case router.Session:
		return r.SessionID
	case router.Gateway:
		if s, ok := r.Conn.(fmt.Stringer); ok {
			return s.String()
		}
	case router.Broadcast:
	}
	return ""
}
