package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Prompter asks for values on the terminal. It declines every prompt when
// stdin is not a terminal, so services never block on input.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool

	once  sync.Once
	lines chan string // closed when input ends
}

// NewPrompter creates a Prompter on stdin and stderr.
func NewPrompter() *Prompter {
	fd := os.Stdin.Fd()
	return &Prompter{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Interactive reports whether prompts will reach a user.
func (p *Prompter) Interactive() bool { return p.interactive }

// PromptURL prints message and reads one line. ok is false when the user
// enters nothing, input ends, ctx is done, or no terminal is attached.
func (p *Prompter) PromptURL(ctx context.Context, message string) (string, bool) {
	if !p.interactive {
		return "", false
	}
	_, _ = fmt.Fprintf(p.out, "%s ", message)

	p.once.Do(p.startReader)

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return "", false
	case line, ok := <-p.lines:
		value := strings.TrimSpace(line)
		if !ok || value == "" {
			return "", false
		}
		return value, true
	}
}

// startReader reads input on one goroutine for the life of the Prompter.
// A line typed after its prompt gave up answers the next prompt.
func (p *Prompter) startReader() {
	p.lines = make(chan string)
	go func() {
		defer close(p.lines)
		br := bufio.NewReader(p.in)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				p.lines <- line
			}
			if err != nil {
				return
			}
		}
	}()
}
