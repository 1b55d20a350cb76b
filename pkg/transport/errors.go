package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no frame handler is configured.
	ErrNoHandler = errors.New("transport: no frame handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrUnknownPeer is returned when no address is known for a node.
	ErrUnknownPeer = errors.New("transport: unknown peer")

	// ErrMessageTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrShortEnvelope is returned for datagrams shorter than the envelope header.
	ErrShortEnvelope = errors.New("transport: short envelope")
)
