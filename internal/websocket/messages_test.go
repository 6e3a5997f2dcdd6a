package websocket

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestParseControlMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    MessageType
		wantErr bool
	}{
		{"listening start", `{"type":"listening_start","sample_rate":16000}`, MessageTypeListeningStart, false},
		{"listening end", `{"type":"listening_end","timestamp":1700000000}`, MessageTypeListeningEnd, false},
		{"ping", `{"type":"ping"}`, MessageTypePing, false},
		{"missing type", `{"sample_rate":16000}`, "", true},
		{"server only type", `{"type":"speaking_start"}`, "", true},
		{"invalid sample rate", `{"type":"listening_start","sample_rate":100000}`, "", true},
		{"invalid JSON", `{"type":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseControlMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseControlMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && msg.Type != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, msg.Type)
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	data := encode(CreateErrorMessage("another device is already connected"))

	var msg ControlMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode error message: %v", err)
	}
	if msg.Type != MessageTypeError || !strings.Contains(msg.Error, "already connected") {
		t.Errorf("Unexpected error message %+v", msg)
	}
	if msg.Timestamp == 0 {
		t.Error("Expected timestamp to be set")
	}
}
