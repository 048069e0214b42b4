package assistant

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// scriptedAnswerer replies "answer:<question>" and records every question.
type scriptedAnswerer struct {
	asked []string
	err   error
}

func (s *scriptedAnswerer) Answer(_ context.Context, q string, w io.Writer) (string, error) {
	s.asked = append(s.asked, q)
	if s.err != nil {
		return "", s.err
	}
	a := "answer:" + q
	_, _ = io.WriteString(w, a)
	return a, nil
}

func TestRunREPL_ExitIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	for _, word := range []string{"exit", "Exit", "EXIT", "  eXiT  "} {
		t.Run(word, func(t *testing.T) {
			t.Parallel()
			s := &scriptedAnswerer{}
			var out bytes.Buffer
			if err := RunREPL(context.Background(), strings.NewReader(word+"\nnever asked\n"), &out, s); err != nil {
				t.Fatalf("RunREPL: %v", err)
			}
			if len(s.asked) != 0 {
				t.Errorf("exit should not reach the assistant, asked %q", s.asked)
			}
			if !strings.Contains(out.String(), "Goodbye!") {
				t.Errorf("missing farewell:\n%s", out.String())
			}
		})
	}
}

func TestRunREPL_AnswersUntilExit(t *testing.T) {
	t.Parallel()
	s := &scriptedAnswerer{}
	var out bytes.Buffer
	in := "What is an agent?\n\n   \nexits are words\nexit\n"
	if err := RunREPL(context.Background(), strings.NewReader(in), &out, s); err != nil {
		t.Fatalf("RunREPL: %v", err)
	}
	want := []string{"What is an agent?", "exits are words"}
	if len(s.asked) != len(want) {
		t.Fatalf("asked %q, want %q", s.asked, want)
	}
	for i := range want {
		if s.asked[i] != want[i] {
			t.Errorf("question %d: got %q, want %q", i, s.asked[i], want[i])
		}
	}
	text := out.String()
	if !strings.HasPrefix(text, "Welcome to the LangChain Docs Q&A Assistant!") {
		t.Errorf("missing banner:\n%s", text)
	}
	if !strings.Contains(text, "\nAssistant: answer:What is an agent?\n") {
		t.Errorf("answer not printed:\n%s", text)
	}
}

func TestRunREPL_QuestionPassedVerbatim(t *testing.T) {
	t.Parallel()
	s := &scriptedAnswerer{}
	var out bytes.Buffer
	in := "  What is a tool?\t\nexit\n"
	if err := RunREPL(context.Background(), strings.NewReader(in), &out, s); err != nil {
		t.Fatalf("RunREPL: %v", err)
	}
	if len(s.asked) != 1 || s.asked[0] != "  What is a tool?\t" {
		t.Errorf("asked %q, want the line unchanged", s.asked)
	}
}

func TestRunREPL_EOFEndsCleanly(t *testing.T) {
	t.Parallel()
	s := &scriptedAnswerer{}
	var out bytes.Buffer
	if err := RunREPL(context.Background(), strings.NewReader("one question"), &out, s); err != nil {
		t.Fatalf("RunREPL: %v", err)
	}
	if len(s.asked) != 1 || s.asked[0] != "one question" {
		t.Errorf("asked: %q", s.asked)
	}
}

func TestRunREPL_AnswerErrorStops(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := &scriptedAnswerer{err: boom}
	err := RunREPL(context.Background(), strings.NewReader("q1\nq2\n"), io.Discard, s)
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if len(s.asked) != 1 {
		t.Errorf("loop should stop after the first failure, asked %q", s.asked)
	}
}

func TestRunREPL_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scriptedAnswerer{}
	err := RunREPL(ctx, strings.NewReader("q\n"), io.Discard, s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(s.asked) != 0 {
		t.Errorf("asked %q after cancel", s.asked)
	}
}
