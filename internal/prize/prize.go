// Package prize decides who wins each housie prize.
//
// A prize is a pattern over a ticket's numbers plus how many of them must be
// called. Prizes are evaluated in list order and each is granted exactly once.
package prize

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/DoyleJ11/housie-backend/internal/ticket"
)

var (
	ErrUnknownPrize   = errors.New("unknown prize")
	ErrAlreadyClaimed = errors.New("prize already claimed")
	ErrNotYetEligible = errors.New("ticket not yet eligible")
)

const (
	EarlyFive  = "EarlyFive"
	FirstLine  = "FirstLine"
	SecondLine = "SecondLine"
	ThirdLine  = "ThirdLine"
	Corners    = "Corners"
	FullHouse  = "FullHouse"
)

// Pattern selects the numbers of a ticket that a prize looks at.
type Pattern func(t ticket.Ticket) []int

type Prize struct {
	ID      string
	Name    string
	Pattern Pattern
	// Need is how many pattern numbers must be called. Zero means all of them.
	Need int
}

// Marker reports the 1-based call position of a number, 0 when not called.
type Marker interface {
	Position(n int) int
}

// WonAt returns the call position at which t first satisfied p, or 0.
func (p Prize) WonAt(t ticket.Ticket, calls Marker) int {
	nums := p.Pattern(t)
	need := p.Need
	if need == 0 || need > len(nums) {
		need = len(nums)
	}
	if need == 0 {
		return 0
	}
	positions := make([]int, 0, len(nums))
	for _, n := range nums {
		if pos := calls.Position(n); pos > 0 {
			positions = append(positions, pos)
		}
	}
	if len(positions) < need {
		return 0
	}
	slices.Sort(positions)
	return positions[need-1]
}

func row(i int) Pattern {
	return func(t ticket.Ticket) []int { return t.Row(i) }
}

func corners(t ticket.Ticket) []int {
	top, bottom := t.Row(0), t.Row(ticket.Rows-1)
	return []int{top[0], top[len(top)-1], bottom[0], bottom[len(bottom)-1]}
}

func whole(t ticket.Ticket) []int { return t.Numbers() }

var catalogue = map[string]Prize{
	EarlyFive:  {ID: EarlyFive, Name: "Early Five", Pattern: whole, Need: 5},
	FirstLine:  {ID: FirstLine, Name: "Line 1", Pattern: row(0)},
	SecondLine: {ID: SecondLine, Name: "Line 2", Pattern: row(1)},
	ThirdLine:  {ID: ThirdLine, Name: "Line 3", Pattern: row(2)},
	Corners:    {ID: Corners, Name: "Corners", Pattern: corners},
	FullHouse:  {ID: FullHouse, Name: "Full House", Pattern: whole},
}

var aliases = map[string]string{
	"QuickFive":  EarlyFive,
	"TopLine":    FirstLine,
	"MiddleLine": SecondLine,
	"BottomLine": ThirdLine,
}

// DefaultList is the prize order used when none is configured.
var DefaultList = []string{FirstLine, SecondLine, ThirdLine, Corners, FullHouse}

// Lookup resolves a prize ID or alias.
func Lookup(id string) (Prize, bool) {
	if canon, ok := aliases[id]; ok {
		id = canon
	}
	p, ok := catalogue[id]
	return p, ok
}

// Known returns every prize ID in the catalogue, sorted.
func Known() []string {
	ids := make([]string, 0, len(catalogue))
	for id := range catalogue {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve turns a list of IDs into prizes, keeping order and dropping repeats.
func Resolve(ids []string) ([]Prize, error) {
	if len(ids) == 0 {
		ids = DefaultList
	}
	out := make([]Prize, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		p, ok := Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrize, id)
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}
