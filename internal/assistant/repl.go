package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	banner = "Welcome to the LangChain Docs Q&A Assistant!\n" +
		"Ask a question about LangChain agents, or type 'exit' to quit."
	inputPrompt = "\nYour question: "
	answerLabel = "\nAssistant: "
	exitWord    = "exit"
	farewell    = "Goodbye!"
)

// Answerer answers a single question, streaming the text to w.
type Answerer interface {
	Answer(ctx context.Context, question string, w io.Writer) (string, error)
}

// RunREPL reads questions from in until "exit" (any case), end of input or
// cancellation of ctx, writing each answer to out. Blank lines are ignored.
// An answer error ends the loop and is returned.
func RunREPL(ctx context.Context, in io.Reader, out io.Writer, a Answerer) error {
	fmt.Fprintln(out, banner)

	if err := ctx.Err(); err != nil {
		return err
	}
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines, readErr := readLines(readCtx, in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, inputPrompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			select {
			case err := <-readErr:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, exitWord) {
			fmt.Fprintln(out, farewell)
			return nil
		}
		if trimmed == "" {
			continue
		}

		fmt.Fprint(out, answerLabel)
		if _, err := a.Answer(ctx, line, out); err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprintln(out)
	}
}

// readLines scans in on its own goroutine. The error channel receives the
// scanner error once input ends.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}
