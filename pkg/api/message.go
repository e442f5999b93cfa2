// Package api serves the JSON websocket API used by integrations to send
// IR codes, toggle learning mode and receive learned codes.
package api

import (
	"irgate/pkg/hw"
	"irgate/pkg/router"
)

// Message types.
const (
	TypeDock  = "dock"
	TypeEvent = "event"
)

// Commands accepted on the websocket.
const (
	CmdIRSend       = "ir_send"
	CmdIRStop       = "ir_stop"
	CmdIRReceiveOn  = "ir_receive_on"
	CmdIRReceiveOff = "ir_receive_off"
	CmdGetStatus    = "get_status"
	CmdIdentify     = "identify"
)

// Status codes carried in replies.
const (
	CodeOK         = 200
	CodeBadRequest = 400
)

// Request is an inbound command.
type Request struct {
	Type    string  `json:"type"`
	ID      *uint32 `json:"id,omitempty"`
	Command string  `json:"command,omitempty"`
	Msg     string  `json:"msg,omitempty"`

	// ir_send
	Code    string `json:"code,omitempty"`
	Format  string `json:"format,omitempty"`
	Repeat  uint16 `json:"repeat,omitempty"`
	IntSide bool   `json:"int_side,omitempty"`
	IntTop  bool   `json:"int_top,omitempty"`
	Ext1    bool   `json:"ext1,omitempty"`
	Ext2    bool   `json:"ext2,omitempty"`
}

// Outputs returns the selected emitters. With none selected the side
// emitter and both external ports are used.
func (r *Request) Outputs() hw.Outputs {
	var out hw.Outputs
	if r.IntSide {
		out |= hw.InternalSide
	}
	if r.IntTop {
		out |= hw.InternalTop
	}
	if r.Ext1 {
		out |= hw.External1
	}
	if r.Ext2 {
		out |= hw.External2
	}
	if out == 0 {
		out = hw.InternalSide | hw.External1 | hw.External2
	}
	return out
}

// Reply is an outbound message: a command reply, an asynchronous send
// result or a learned-code event.
type Reply struct {
	Type  string  `json:"type"`
	Msg   string  `json:"msg,omitempty"`
	ReqID *uint32 `json:"req_id,omitempty"`
	Code  int     `json:"code,omitempty"`
	Error string  `json:"error,omitempty"`

	IRCode     string `json:"ir_code,omitempty"`
	IRLearning *bool  `json:"ir_learning,omitempty"`
	IRSending  *bool  `json:"ir_sending,omitempty"`
}

func replyTo(req *Request, code int) Reply {
	return Reply{Type: TypeDock, Msg: req.Command, ReqID: req.ID, Code: code}
}

// EventReply renders a router event for a websocket client.
func EventReply(ev router.Event) Reply {
	switch ev.Kind {
	case router.Learned:
		return Reply{Type: TypeEvent, Msg: ev.Kind.String(), IRCode: ev.Code}
	case router.SendResult:
		id := ev.CorrelationID
		code := CodeOK
		if !ev.Success {
			code = CodeBadRequest
		}
		return Reply{Type: TypeDock, Msg: ev.Kind.String(), ReqID: &id, Code: code}
	}
	return Reply{Type: TypeEvent, Msg: ev.Kind.String()}
}
