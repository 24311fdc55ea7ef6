package ticket

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Numbered pairs a ticket with its serial.
type Numbered struct {
	Serial int
	Ticket Ticket
}

// GenerateRange builds tickets for serials from..to inclusive using at most
// workers goroutines. Results are ordered by serial.
func GenerateRange(ctx context.Context, from, to, workers int) ([]Numbered, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: serial range %d..%d", ErrInvalidTicket, from, to)
	}
	if workers < 1 {
		workers = 1
	}

	out := make([]Numbered, to-from+1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range out {
		serial := from + i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Numbered{Serial: serial, Ticket: Generate(serial)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
