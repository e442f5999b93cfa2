package protocol

import "time"

// Network endpoints and limits of the iTach emulation.
const (
	// DefaultPort is the TCP port iTach controllers connect to.
	DefaultPort = 4998

	// BeaconAddr is the multicast group and port of the discovery beacon.
	BeaconAddr = "239.255.250.250:9131"

	// BeaconInterval is how often the beacon is announced.
	BeaconInterval = 30 * time.Second
	// BeaconRetry is how soon the beacon retries while no address is known.
	BeaconRetry = 10 * time.Second

	// MaxClients is the number of concurrently served connections.
	MaxClients = 8

	// MaxLineLength bounds a request line including its terminator.
	MaxLineLength = 1024

	// MaxCommandLength is the longest accepted command name.
	MaxCommandLength = 19

	// Module is the only module address an emulated iTach IR unit has.
	Module = 1

	// MaxPort is the highest connector address.
	MaxPort = 15

	// MinSendRepeat and MaxSendRepeat bound the sendir repeat field.
	MinSendRepeat = 1
	MaxSendRepeat = 50
)

// Terminator ends every request and reply line.
const Terminator = '\r'
