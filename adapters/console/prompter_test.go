package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/satriahrh/kyc-voice/domain/entities"
)

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("Uddhav Davey\n\n  yes  \n"), &out)
	ctx := context.Background()

	if err := p.Speak(ctx, "May I have your full name please?"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if !strings.Contains(out.String(), "Bot: May I have your full name please?\n") {
		t.Errorf("Unexpected output %q", out.String())
	}

	got, err := p.Listen(ctx)
	if err != nil || got != "Uddhav Davey" {
		t.Errorf("Expected name, got %q, %v", got, err)
	}

	if _, err := p.Listen(ctx); !errors.Is(err, entities.ErrNotUnderstood) {
		t.Errorf("Expected blank line to be not understood, got %v", err)
	}

	got, err = p.Listen(ctx)
	if err != nil || got != "yes" {
		t.Errorf("Expected trimmed answer, got %q, %v", got, err)
	}

	if _, err := p.Listen(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF at end of input, got %v", err)
	}
}

func TestPrompter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrompter(strings.NewReader("yes\n"), io.Discard)
	if err := p.Speak(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := p.Listen(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
