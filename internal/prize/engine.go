package prize

import (
	"fmt"
	"slices"

	"github.com/DoyleJ11/housie-backend/internal/ticket"
)

// Entry is one ticket in play and who holds it.
type Entry struct {
	Serial     int
	PlayerID   string
	PlayerName string
	Ticket     ticket.Ticket
}

// Claim is a granted prize. It never changes once recorded.
type Claim struct {
	PrizeID    string
	PrizeName  string
	PlayerID   string
	PlayerName string
	Serial     int
	Position   int
}

// Engine is not safe for concurrent use.
type Engine struct {
	prizes []Prize
	claims map[string]Claim
}

func NewEngine(ids []string) (*Engine, error) {
	prizes, err := Resolve(ids)
	if err != nil {
		return nil, err
	}
	return &Engine{prizes: prizes, claims: make(map[string]Claim)}, nil
}

func (e *Engine) Prizes() []Prize { return slices.Clone(e.prizes) }

func (e *Engine) Reset() { clear(e.claims) }

func (e *Engine) Open(id string) bool {
	p, ok := Lookup(id)
	if !ok {
		return false
	}
	_, claimed := e.claims[p.ID]
	return !claimed && e.listed(p.ID)
}

func (e *Engine) AllClaimed() bool { return len(e.claims) == len(e.prizes) }

// Claims returns granted prizes in prize-list order.
func (e *Engine) Claims() []Claim {
	out := make([]Claim, 0, len(e.claims))
	for _, p := range e.prizes {
		if c, ok := e.claims[p.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Evaluate grants every open prize that some entry now satisfies. Entries are
// scanned in ascending serial order and the first satisfier wins.
func (e *Engine) Evaluate(calls Marker, entries []Entry) []Claim {
	ordered := slices.Clone(entries)
	slices.SortFunc(ordered, func(a, b Entry) int { return a.Serial - b.Serial })

	var won []Claim
	for _, p := range e.prizes {
		if _, claimed := e.claims[p.ID]; claimed {
			continue
		}
		for _, en := range ordered {
			if pos := p.WonAt(en.Ticket, calls); pos > 0 {
				won = append(won, e.record(p, en, pos))
				break
			}
		}
	}
	return won
}

// Claim validates a player's claim against the calls made so far. Among the
// claimant's entries the one that became valid earliest is used.
func (e *Engine) Claim(id string, calls Marker, entries []Entry) (Claim, error) {
	p, ok := Lookup(id)
	if !ok || !e.listed(p.ID) {
		return Claim{}, fmt.Errorf("%w: %q", ErrUnknownPrize, id)
	}
	if _, claimed := e.claims[p.ID]; claimed {
		return Claim{}, ErrAlreadyClaimed
	}

	best, bestPos := -1, 0
	for i, en := range entries {
		pos := p.WonAt(en.Ticket, calls)
		if pos == 0 {
			continue
		}
		if best < 0 || pos < bestPos || (pos == bestPos && en.Serial < entries[best].Serial) {
			best, bestPos = i, pos
		}
	}
	if best < 0 {
		return Claim{}, ErrNotYetEligible
	}
	return e.record(p, entries[best], bestPos), nil
}

func (e *Engine) record(p Prize, en Entry, pos int) Claim {
	c := Claim{
		PrizeID:    p.ID,
		PrizeName:  p.Name,
		PlayerID:   en.PlayerID,
		PlayerName: en.PlayerName,
		Serial:     en.Serial,
		Position:   pos,
	}
	e.claims[p.ID] = c
	return c
}

func (e *Engine) listed(id string) bool {
	return slices.ContainsFunc(e.prizes, func(p Prize) bool { return p.ID == id })
}
