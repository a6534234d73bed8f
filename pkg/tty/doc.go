// Package tty emulates the small subset of an ANSI/VT100 terminal needed to replay
// recorded sessions.
//
// Screen holds the cell grid, cursor and pen. Terminal wraps a Screen with the
// escape sequence state machine:
//
//	Outside --ESC--> Escape --[--> CSI --final byte--> Outside
//	                        --]--> OSC --BEL or ESC \--> Outside
//	                        --CAN/SUB--> Outside
//
// Colors are limited to the CGA palette from package cga. There is no alternate
// screen, no scroll region and no mouse support.
//
// Neither type is safe for concurrent use. A replay owns exactly one Terminal.
package tty
