// ABOUTME: Line-based prompting over an input reader and output writer
// ABOUTME: Used by registration, the registration decision, and the blog menu

package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter prints questions to w and reads single-line answers from r.
type Prompter struct {
	r *bufio.Reader
	w io.Writer
}

// New creates a Prompter reading from r and writing to w.
func New(r io.Reader, w io.Writer) *Prompter {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Prompter{r: br, w: w}
}

// Writer returns the output the prompter writes to.
func (p *Prompter) Writer() io.Writer {
	return p.w
}

// Ask prints the question followed by a "> " prompt on its own line and
// returns the answer with surrounding whitespace trimmed.
//
//	Question text
//	> _
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(p.w, question+"\n> "); err != nil {
		return "", err
	}
	return p.ReadLine()
}

// Inline prints label without a newline and reads the answer on the same line.
func (p *Prompter) Inline(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(p.w, label); err != nil {
		return "", err
	}
	return p.ReadLine()
}

// ReadLine reads one line and trims it. If EOF occurs after some input was
// read, the partial line is returned.
func (p *Prompter) ReadLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadUntil reads raw lines until one equal to terminator (after trimming)
// or EOF. Each line keeps its content without the trailing newline.
// onLine, if set, is called with the running line count.
func (p *Prompter) ReadUntil(terminator string, onLine func(count int)) ([]string, error) {
	var lines []string
	for {
		line, err := p.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return lines, err
		}
		if strings.TrimSpace(line) == terminator && line != "" {
			return lines, nil
		}
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			if onLine != nil {
				onLine(len(lines))
			}
		}
		if err != nil {
			return lines, nil
		}
	}
}

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// StdinIsTerminal reports whether standard input is an interactive terminal.
func StdinIsTerminal() bool {
	return isTerminal(int(os.Stdin.Fd()))
}
