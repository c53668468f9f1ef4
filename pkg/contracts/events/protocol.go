package events

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "datatidy-events"
)

// ClientMessage is a message sent by a client. Only ping is understood;
// everything else is answered with an error message.
type ClientMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
)
