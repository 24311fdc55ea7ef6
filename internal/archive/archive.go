// Package archive keeps an audit trail of finished games. Nothing is read
// back into a live session.
package archive

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/housie-backend/internal/prize"
)

// Result summarises one finished game.
type Result struct {
	RoomCode string
	EndedAt  time.Time
	Calls    []int
	Players  int
	Wins     []prize.Claim
}

type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Store is a Recorder that can also list what it recorded.
type Store interface {
	Recorder
	Recent(ctx context.Context, roomCode string, limit int) ([]Result, error)
}

// Nop discards results.
type Nop struct{}

func (Nop) Record(context.Context, Result) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Result, error) { return nil, nil }

func encodeCalls(calls []int) string {
	parts := make([]string, len(calls))
	for i, n := range calls {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func decodeCalls(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
