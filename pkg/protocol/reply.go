package protocol

import (
	"fmt"
	"strings"
)

// Fixed replies.
const (
	ReplyBusy          = "busyir\r"
	ReplyEndOfDevices  = "endlistdevices\r"
	replyLineTooLong   = "ERR 016\r"
	replySendirTooLong = "ERR 020\r"
)

// ErrorReply formats an error for a request whose address is not known,
// "ERR_003\r".
func ErrorReply(code int) string {
	return fmt.Sprintf("ERR_%03d\r", code)
}

// AddressedErrorReply formats an error for an addressed request,
// "ERR_1:3,006\r".
func AddressedErrorReply(module, port, code int) string {
	return fmt.Sprintf("ERR_%d:%d,%03d\r", module, port, code)
}

// TooLongReply is sent when a line exceeds MaxLineLength without a
// terminator. Pending sendir data gets its own code.
func TooLongReply(pending []byte) string {
	if strings.HasPrefix(string(pending), "sendir,") {
		return replySendirTooLong
	}
	return replyLineTooLong
}

// CompleteReply acknowledges a finished sendir, "completeir,1:1,42\r".
func CompleteReply(module, port int, id uint32) string {
	return fmt.Sprintf("completeir,%d:%d,%d\r", module, port, id)
}

// DevicesReply lists the emulated modules. The IR module reports one
// connector per available emitter line.
func DevicesReply(ethernet bool, irPorts int) string {
	var b strings.Builder
	if ethernet {
		b.WriteString("device,0,0 ETHERNET\r")
	}
	b.WriteString("device,0,0 WIFI\r")
	fmt.Fprintf(&b, "device,%d,%d IR\r", Module, irPorts)
	b.WriteString(ReplyEndOfDevices)
	return b.String()
}

// VersionReply reports the firmware revision in dashed form.
func VersionReply(dashed string) string {
	return dashed + "\r"
}

// MACReply reports the device MAC as 12 hex digits.
func MACReply(mac string) string {
	return "MACaddress," + mac + "\r"
}
