package gateway

import (
	"errors"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
	"irgate/pkg/irsend"
	"irgate/pkg/protocol"
	"irgate/pkg/router"
)

// handleLine executes one request. It returns false when the session
// must end because a reply could not be written.
func (s *Server) handleLine(sess *session, line string) bool {
	line = trimLeadingNonGraphic(line)
	if line == "" {
		return true
	}
	sess.log.Debug("request", "line", line)

	req, err := protocol.Parse(line)
	if err != nil {
		var perr *protocol.Error
		if !errors.As(err, &perr) {
			perr = &protocol.Error{Code: protocol.CodeInvalidCommand}
		}
		return sess.write(protocol.ErrorReply(perr.Code)) == nil
	}

	switch req.Command {
	case protocol.CommandSendIR:
		return s.sendIR(sess, req, line)
	case protocol.CommandStopIR:
		s.sender.Stop()
		return sess.write(line+string(protocol.Terminator)) == nil
	case protocol.CommandGetDevices:
		return sess.write(protocol.DevicesReply(s.id.Ethernet, s.cfg.Available.Count())) == nil
	case protocol.CommandGetVersion:
		return sess.write(protocol.VersionReply(s.id.Revision())) == nil
	case protocol.CommandGetMAC:
		return sess.write(protocol.MACReply(s.id.MAC)) == nil
	case protocol.CommandBlink:
		s.blink(req.Param)
		return true
	case protocol.CommandLearnStart:
		s.learner.Start()
		return true
	case protocol.CommandLearnStop:
		s.learner.Stop()
		return true
	case protocol.CommandUnknown:
		return sess.write(protocol.AddressedErrorReply(req.Module, req.Port, protocol.CodeInvalidCommand)) == nil
	default:
		return sess.write(protocol.AddressedErrorReply(req.Module, req.Port, protocol.CodeInvalidCommand)) == nil
	}
}

func (s *Server) sendIR(sess *session, req protocol.Request, line string) bool {
	hdr, err := protocol.ParseSendIR(line)
	if err != nil {
		code := protocol.CodeInvalidCommand
		var perr *protocol.Error
		if errors.As(err, &perr) {
			code = perr.Code
		}
		return sess.write(protocol.AddressedErrorReply(req.Module, req.Port, code)) == nil
	}

	outcome := s.sender.Send(irsend.Request{
		Requester:     router.GatewayRequester(completion{sess: sess, module: req.Module, port: req.Port}),
		CorrelationID: hdr.ID,
		Code:          line,
		Format:        ircode.FormatGlobalCache,
		Repeat:        hdr.Repeat,
		Outputs:       PortOutputs(hdr.Port),
	})
	sess.log.Debug("sendir", "id", hdr.ID, "port", hdr.Port, "outcome", outcome.String())

	reply := sendReply(req.Module, req.Port, outcome)
	if reply == "" {
		return true
	}
	return sess.write(reply) == nil
}

// sendReply maps a send outcome to the iTach reply, if any.
func sendReply(module, port int, o irsend.Outcome) string {
	switch {
	case o.Accepted():
		return ""
	case o.Busy():
		return protocol.ReplyBusy
	case o == irsend.NotReady:
		return protocol.AddressedErrorReply(module, port, protocol.CodeUnavailable)
	case o > 0 && o < 100:
		return protocol.AddressedErrorReply(module, port, int(o))
	default:
		return protocol.AddressedErrorReply(module, port, protocol.CodeInvalidCommand)
	}
}

// PortOutputs maps an iTach connector address, used as a bitmask, to
// emitter lines: 1 internal side, 2 external 1, 4 external 2, 8 internal top.
func PortOutputs(port int) hw.Outputs {
	var out hw.Outputs
	if port&1 != 0 {
		out |= hw.InternalSide
	}
	if port&2 != 0 {
		out |= hw.External1
	}
	if port&4 != 0 {
		out |= hw.External2
	}
	if port&8 != 0 {
		out |= hw.InternalTop
	}
	return out
}

func (s *Server) blink(param *string) {
	switch {
	case param == nil || *param == "1":
		s.indicator.SetState(hw.StateIdentify)
	case *param == "0":
		s.indicator.SetState(hw.StateNormal)
	}
}

func trimLeadingNonGraphic(s string) string {
	i := 0
	for i < len(s) && (s[i] <= ' ' || s[i] > '~') {
		i++
	}
	return s[i:]
}
