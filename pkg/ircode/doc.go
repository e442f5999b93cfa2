// Package ircode parses and validates the textual infrared code formats
// accepted by irgate and turns them into transmit frames.
//
// Three formats are understood:
//
//	hex     "<protocol>;<hex command>;<bits>;<repeat>"   e.g. "4;0x640C;15;0"
//	pronto  raw Pronto hex, space or comma separated    e.g. "0000 006D 0000 0022 ..."
//	gc      GlobalCache sendir values, with or without the "sendir,<m>:<p>,<id>," prefix
//
// Parsing is pure: every call returns freshly allocated values and never
// retains the input.
package ircode
