package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

type recordingSearcher struct {
	questions []string
	result    func(q string) rag.Result
}

func (s *recordingSearcher) Query(_ context.Context, q string) rag.Result {
	s.questions = append(s.questions, q)
	if s.result != nil {
		return s.result(q)
	}
	return rag.Result{Kind: rag.KindAnswer, Answer: "answer to " + q}
}

func run(t *testing.T, input string, s Searcher) string {
	t.Helper()
	var out bytes.Buffer
	if err := NewLoop(s, strings.NewReader(input), &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String()
}

func TestExitCommand(t *testing.T) {
	for _, input := range []string{"exit\n", "EXIT\n", "  Exit \t\n"} {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			s := &recordingSearcher{}
			out := run(t, input+"never asked\n", s)
			if len(s.questions) != 0 {
				t.Errorf("searcher called with %q", s.questions)
			}
			if !strings.Contains(out, Farewell) {
				t.Errorf("output %q lacks the farewell", out)
			}
		})
	}
}

func TestExitWithoutTrailingNewline(t *testing.T) {
	s := &recordingSearcher{}
	out := run(t, "exit", s)
	if len(s.questions) != 0 || strings.Count(out, Farewell) != 1 {
		t.Errorf("questions = %q, output = %q", s.questions, out)
	}
}

func TestExitMustMatchExactly(t *testing.T) {
	s := &recordingSearcher{}
	run(t, "exit now\nexiting\n", s)
	if len(s.questions) != 2 {
		t.Errorf("searcher called %d times, want 2", len(s.questions))
	}
}

func TestEmptyInputReprompts(t *testing.T) {
	s := &recordingSearcher{}
	out := run(t, "\n   \n\t\nexit\n", s)
	if len(s.questions) != 0 {
		t.Errorf("searcher called for empty input: %q", s.questions)
	}
	if got := strings.Count(out, "QUESTION: "); got != 4 {
		t.Errorf("prompted %d times, want 4", got)
	}
}

func TestQuestionsAreAnswered(t *testing.T) {
	s := &recordingSearcher{}
	out := run(t, "  What is the refund window?  \nWho pays shipping?\nexit\n", s)

	want := []string{"What is the refund window?", "Who pays shipping?"}
	if strings.Join(s.questions, "|") != strings.Join(want, "|") {
		t.Errorf("questions = %q, want %q", s.questions, want)
	}
	for _, q := range want {
		if !strings.Contains(out, "ANSWER: answer to "+q+"\n") {
			t.Errorf("output missing answer for %q:\n%s", q, out)
		}
	}
}

func TestFailedQueryPrintsFixedMessage(t *testing.T) {
	s := &recordingSearcher{result: func(string) rag.Result {
		return rag.Result{Kind: rag.KindSearch, Err: errors.New("boom")}
	}}
	out := run(t, "anything\n", s)
	if !strings.Contains(out, "ANSWER: "+models.SearchErrorMessage) {
		t.Errorf("output = %q", out)
	}
}

func TestEndOfInput(t *testing.T) {
	s := &recordingSearcher{}
	out := run(t, "one question\n", s)
	if len(s.questions) != 1 {
		t.Errorf("searcher called %d times, want 1", len(s.questions))
	}
	if !strings.Contains(out, Farewell) {
		t.Errorf("output %q lacks the farewell", out)
	}
}

func TestCancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- NewLoop(&recordingSearcher{}, pr, &out).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on interrupt", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestInterruptDuringQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &recordingSearcher{result: func(string) rag.Result {
		cancel()
		return rag.Result{Kind: rag.KindSearch, Err: context.Canceled}
	}}

	var out bytes.Buffer
	if err := NewLoop(s, strings.NewReader("slow question\nsecond question\n"), &out).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(s.questions) != 1 {
		t.Errorf("searcher called %d times, want 1", len(s.questions))
	}
	if strings.Contains(out.String(), "ANSWER:") {
		t.Errorf("interrupted query printed an answer: %q", out.String())
	}
	if strings.Count(out.String(), Farewell) != 1 {
		t.Errorf("output %q, want exactly one farewell", out.String())
	}
}
