package protocol

import (
	"strings"
)

// Request is one parsed request line.
//
// Module and Port are zero when the line carries no "<module>:<port>"
// address. Param is nil when nothing follows the address (or the command).
type Request struct {
	Command Command
	Name    string
	Module  int
	Port    int
	Param   *string
}

// Parse splits a request line (without terminator) into command name,
// address and parameters. Supported shapes:
//
//	getversion
//	blink,<mode>
//	stopir,<module>:<port>
//	sendir,<module>:<port>,<id>,<freq>,<repeat>,<offset>,<on1>,<off1>,...
//
// An unrecognised command name is not an error; its Command is CommandUnknown.
func Parse(line string) (Request, error) {
	name, rest, hasArgs := strings.Cut(line, ",")
	if len(name) > MaxCommandLength {
		return Request{}, newError(CodeInvalidCommand, "command name longer than %d characters", MaxCommandLength)
	}
	req := Request{Command: LookupCommand(name), Name: name}
	if !hasArgs {
		return req, nil
	}

	// A single argument without an address is a plain parameter ("blink,1").
	if !strings.Contains(rest, ",") && !strings.Contains(rest, ":") {
		req.Param = &rest
		return req, nil
	}

	if leadingInt(rest) != Module {
		return Request{}, newError(CodeInvalidModule, "module address must be %d", Module)
	}
	req.Module = Module

	_, portPart, ok := strings.Cut(rest, ":")
	if !ok {
		return Request{}, newError(CodeInvalidPort, "missing port address")
	}
	port := leadingInt(portPart)
	if port < 1 || port > MaxPort {
		return Request{}, newError(CodeInvalidPort, "port address must be 1..%d", MaxPort)
	}
	req.Port = port

	if _, param, ok := strings.Cut(portPart, ","); ok {
		req.Param = &param
	}
	return req, nil
}

// SendIR holds the validated header fields of a sendir request.
type SendIR struct {
	Port   int
	ID     uint32
	Repeat uint16
}

// sendirPrefix is the only module address accepted for sendir.
const sendirPrefix = "sendir,1:"

// ParseSendIR validates the header of a full sendir line:
// "sendir,1:<port>,<id>,<freq>,<repeat>,...". The burst data itself is
// validated by the IR codec.
func ParseSendIR(line string) (SendIR, error) {
	rest, ok := strings.CutPrefix(line, sendirPrefix)
	if !ok {
		return SendIR{}, newError(CodeInvalidModule, "sendir must address module %d", Module)
	}

	portPart, afterPort, ok := strings.Cut(rest, ",")
	if !ok {
		return SendIR{}, newError(CodeInvalidID, "missing id")
	}
	port := leadingInt(portPart)
	if port < 1 || port > MaxPort {
		return SendIR{}, newError(CodeInvalidPort, "port address must be 1..%d", MaxPort)
	}

	idPart, afterID, ok := strings.Cut(afterPort, ",")
	if !ok {
		return SendIR{}, newError(CodeInvalidFrequency, "missing frequency")
	}
	_, afterFreq, ok := strings.Cut(afterID, ",")
	if !ok {
		return SendIR{}, newError(CodeInvalidRepeat, "missing repeat")
	}
	repeat := leadingInt(afterFreq)
	if repeat < MinSendRepeat || repeat > MaxSendRepeat {
		return SendIR{}, newError(CodeInvalidRepeat, "repeat must be %d..%d", MinSendRepeat, MaxSendRepeat)
	}

	id := leadingInt(idPart)
	if id < 0 {
		id = 0
	}
	return SendIR{Port: port, ID: uint32(id), Repeat: uint16(repeat)}, nil
}

// leadingInt parses the decimal prefix of s the way controllers expect:
// leading blanks and an optional sign are accepted, parsing stops at the
// first non-digit and no digits yields 0.
func leadingInt(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<31 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
