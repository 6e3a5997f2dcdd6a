package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// Prompter talks over text lines instead of audio
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

var _ repositories.Prompter = (*Prompter)(nil)

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

func (p *Prompter) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.out, "Bot: %s\n", text)
	return err
}

// Listen reads one line. A blank line is not understood; end of input is an error.
func (p *Prompter) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, "You: ")

	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", fmt.Errorf("failed to read input: %w", io.EOF)
	}

	line := strings.TrimSpace(p.in.Text())
	if line == "" {
		return "", entities.ErrNotUnderstood
	}
	return line, nil
}
