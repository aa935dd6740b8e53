package relay

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Queue feeds relay commands from several sources to a single consumer.
type Queue struct {
	ch chan Request
}

// Request is a command with a channel for the outcome.
type Request struct {
	Command Command
	Result  chan error
}

func NewQueue(size int) *Queue { return &Queue{ch: make(chan Request, size)} }

// Submit enqueues cmd and waits for it to be applied.
func (q *Queue) Submit(ctx context.Context, cmd Command) error {
	req := Request{Command: cmd, Result: make(chan error, 1)}
	select {
	case q.ch <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve applies requests with apply until ctx is canceled.
func (q *Queue) Serve(ctx context.Context, apply func(context.Context, Command) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-q.ch:
			req.Result <- apply(ctx, req.Command)
		}
	}
}

// ReadLines parses one command per line from r and submits it. Parse and
// apply errors go to report; blank lines are ignored. It returns when r is
// exhausted or ctx is canceled.
func (q *Queue) ReadLines(ctx context.Context, r io.Reader, source string, report func(line string, err error)) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := ParseCommand(line)
			if err == nil {
				cmd.Source = source
				err = q.Submit(ctx, cmd)
			}
			report(line, err)
		}
	}
}
