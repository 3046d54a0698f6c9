package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/rag"
)

const (
	ExitCommand = "exit"
	Prompt      = "\nQUESTION: "
	Farewell    = "Closing chat. Goodbye!"
)

// Searcher answers a single question.
type Searcher interface {
	Query(ctx context.Context, question string) rag.Result
}

// Loop is a read-eval-print loop over a Searcher. Turns share no state.
type Loop struct {
	searcher Searcher
	in       io.Reader
	out      io.Writer
}

func NewLoop(searcher Searcher, in io.Reader, out io.Writer) *Loop {
	return &Loop{searcher: searcher, in: in, out: out}
}

// Run reads questions until "exit", end of input or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Msgf("Chat with the document - type '%s' to quit", ExitCommand)

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if _, err := io.WriteString(l.out, Prompt); err != nil {
			return err
		}

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			l.farewell()
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(l.out)
			l.farewell()
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		question := strings.TrimSpace(line)
		if strings.EqualFold(question, ExitCommand) {
			l.farewell()
			return nil
		}
		if question == "" {
			continue
		}

		res := l.searcher.Query(ctx, question)
		if ctx.Err() != nil {
			fmt.Fprintln(l.out)
			l.farewell()
			return nil
		}
		if res.Err != nil {
			log.Debug().Err(res.Err).Str("kind", res.Kind.String()).Msg("Query failed")
		}
		if _, err := fmt.Fprintf(l.out, "\nANSWER: %s\n", res); err != nil {
			return err
		}
	}
}

func (l *Loop) farewell() {
	log.Info().Msg(Farewell)
	fmt.Fprintln(l.out, Farewell)
}
