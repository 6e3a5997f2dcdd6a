package websocket

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// MessageType defines the type of a control message
type MessageType string

// Server to device
const (
	MessageTypeSpeakingStart    MessageType = "speaking_start"
	MessageTypeSpeakingEnd      MessageType = "speaking_end"
	MessageTypeListeningRequest MessageType = "listening_request"
	MessageTypeError            MessageType = "error"
)

// Device to server
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypePing           MessageType = "ping"
)

// ControlMessage is the JSON text frame exchanged with the device. Audio
// travels in binary frames between the start and end messages.
type ControlMessage struct {
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Encoding   string      `json:"encoding,omitempty"`
	TimeoutMs  int64       `json:"timeout_ms,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// ParseControlMessage decodes and checks a device text frame
func ParseControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case MessageTypeListeningStart, MessageTypeListeningEnd, MessageTypePing:
	case "":
		return nil, fmt.Errorf("message missing type field")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	if msg.Type == MessageTypeListeningStart && msg.SampleRate != 0 &&
		(msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return nil, fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	return &msg, nil
}

func newControlMessage(t MessageType) *ControlMessage {
	return &ControlMessage{
		Type:      t,
		Timestamp: time.Now().Unix(),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(message string) *ControlMessage {
	msg := newControlMessage(MessageTypeError)
	msg.Error = message
	return msg
}

func encode(msg *ControlMessage) []byte {
	data, _ := sonic.Marshal(msg)
	return data
}
