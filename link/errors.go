package link

import "errors"

// Sentinel errors for the link layer.
var (
	// Send-side errors.
	ErrWindowFull       = errors.New("link: send window full")
	ErrPacketInProgress = errors.New("link: packet already in progress")
	ErrNoPacket         = errors.New("link: no packet in progress")
	ErrPayloadTooLarge  = errors.New("link: payload exceeds max payload size")

	// Receive-side errors.
	ErrUnframedByte   = errors.New("link: byte received outside of a frame")
	ErrSessionFaulted = errors.New("link: session faulted")

	// Construction errors.
	ErrConfigNil    = errors.New("link: config is nil")
	ErrNilTransport = errors.New("link: transport is nil")
)
