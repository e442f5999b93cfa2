package protocol

// Command is the closed set of request commands the gateway understands.
type Command uint8

const (
	CommandUnknown Command = iota
	CommandSendIR
	CommandStopIR
	CommandGetDevices
	CommandGetVersion
	CommandGetMAC
	CommandBlink
	CommandLearnStart
	CommandLearnStop
)

var commandNames = map[string]Command{ //nolint:gochecknoglobals // lookup table
	"sendir":     CommandSendIR,
	"stopir":     CommandStopIR,
	"getdevices": CommandGetDevices,
	"getversion": CommandGetVersion,
	"getmac":     CommandGetMAC,
	"blink":      CommandBlink,
	"get_IRL":    CommandLearnStart,
	"stop_IRL":   CommandLearnStop,
}

// LookupCommand maps a wire name to its command. Names are case sensitive.
func LookupCommand(name string) Command {
	return commandNames[name]
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c > CommandUnknown && c <= CommandLearnStop
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}
