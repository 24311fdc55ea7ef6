package engine

import (
	"errors"
	"slices"

	"github.com/DoyleJ11/housie-backend/internal/prize"
	"github.com/DoyleJ11/housie-backend/internal/ticket"
)

const DefaultPoolSize = 600

func DefaultRules() Rules {
	return Rules{
		PoolSize:            DefaultPoolSize,
		MaxTicketsPerPlayer: 1,
		ClaimMode:           ClaimAuto,
		Prizes:              slices.Clone(prize.DefaultList),
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.PoolSize <= 0 {
		r.PoolSize = d.PoolSize
	}
	if r.MaxTicketsPerPlayer <= 0 {
		r.MaxTicketsPerPlayer = d.MaxTicketsPerPlayer
	}
	if r.ClaimMode == "" {
		r.ClaimMode = d.ClaimMode
	}
	if len(r.Prizes) == 0 {
		r.Prizes = d.Prizes
	}
	return r
}

// Snapshot is a copy of the session safe to hand to other goroutines.
type Snapshot struct {
	Status  Status
	Rules   Rules
	Players []Player
	History []int
	Current int
	Prizes  []PrizeInfo
	Claims  []prize.Claim
	HostID  string
}

func (s *Session) Snapshot() Snapshot {
	rules := s.rules
	rules.Prizes = slices.Clone(s.rules.Prizes)
	return Snapshot{
		Status:  s.status,
		Rules:   rules,
		Players: s.playerList(),
		History: s.caller.History(),
		Current: s.caller.Current(),
		Prizes:  s.prizeList(),
		Claims:  s.prizes.Claims(),
		HostID:  s.host,
	}
}

func (s *Session) Status() Status { return s.status }

func (s *Session) HostID() string { return s.host }

// Player returns a copy of the player with id.
func (s *Session) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return copyPlayer(p), true
}

// Ticket returns the grid for serial, cached for the life of the session.
func (s *Session) Ticket(serial int) ticket.Ticket {
	if t, ok := s.tickets[serial]; ok {
		return t
	}
	t := ticket.Generate(serial)
	s.tickets[serial] = t
	return t
}

// Reason maps a command error to the code sent in commandRejected.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyJoined):
		return "invalid_state"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNotYetEligible):
		return "not_yet_eligible"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrHostTaken):
		return "host_taken"
	case errors.Is(err, ErrSerialTaken):
		return "serial_taken"
	case errors.Is(err, ErrUnknownPrize):
		return "unknown_prize"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown_player"
	default:
		return "bad_request"
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// clear drops players and game progress. The ticket cache survives since
// grids never change.
func (s *Session) clear() {
	s.status = StatusLobby
	s.players = make(map[string]*Player)
	s.order = nil
	s.held = make(map[int]string)
	s.retired = make(map[int]bool)
	s.host = ""
	s.caller.Reset()
	s.prizes.Reset()
}

func (s *Session) isHost(id string) bool {
	return id != "" && id == s.host
}

func (s *Session) canTakeTicket() error {
	switch {
	case s.status == StatusEnded:
		return ErrInvalidState
	case s.status == StatusRunning && s.rules.FreezeJoinsWhenRunning:
		return ErrInvalidState
	}
	return nil
}

// allocate returns want when it is free, or the lowest free serial when want
// is zero. Serials retired during a running game are skipped.
func (s *Session) allocate(want int) (int, error) {
	if want != 0 {
		if want < 1 || want > s.rules.PoolSize {
			return 0, ErrSerialTaken
		}
		if _, taken := s.held[want]; taken || s.retired[want] {
			return 0, ErrSerialTaken
		}
		return want, nil
	}
	for serial := 1; serial <= s.rules.PoolSize; serial++ {
		if _, taken := s.held[serial]; !taken && !s.retired[serial] {
			return serial, nil
		}
	}
	return 0, ErrCapacityExceeded
}

func (s *Session) addPlayer(p *Player) {
	s.players[p.ID] = p
	s.order = append(s.order, p.ID)
}

func (s *Session) hold(p *Player, serial int) {
	s.held[serial] = p.ID
	p.Serials = append(p.Serials, serial)
}

func (s *Session) playerList() []Player {
	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyPlayer(s.players[id]))
	}
	return out
}

func copyPlayer(p *Player) Player {
	c := *p
	c.Serials = slices.Clone(p.Serials)
	return c
}

func (s *Session) roster() Event {
	return Event{Type: EvtRosterUpdated, Players: s.playerList()}
}

func (s *Session) assigned(playerID string, serial int) Event {
	return Event{Type: EvtTicketAssigned, To: playerID, Serial: serial, Ticket: s.Ticket(serial)}
}

func (s *Session) prizeList() []PrizeInfo {
	prizes := s.prizes.Prizes()
	out := make([]PrizeInfo, len(prizes))
	for i, p := range prizes {
		out[i] = PrizeInfo{ID: p.ID, Name: p.Name}
	}
	return out
}

func (s *Session) entry(p *Player, serial int) prize.Entry {
	return prize.Entry{Serial: serial, PlayerID: p.ID, PlayerName: p.Name, Ticket: s.Ticket(serial)}
}

func (s *Session) entriesFor(p *Player) []prize.Entry {
	out := make([]prize.Entry, 0, len(p.Serials))
	for _, serial := range p.Serials {
		out = append(out, s.entry(p, serial))
	}
	return out
}

func (s *Session) entries() []prize.Entry {
	var out []prize.Entry
	for _, id := range s.order {
		out = append(out, s.entriesFor(s.players[id])...)
	}
	return out
}

func wonEvent(c prize.Claim) Event {
	return Event{Type: EvtPrizeWon, Claim: &c, Serial: c.Serial}
}

func (s *Session) endIfAllClaimed(events []Event) []Event {
	if s.prizes.AllClaimed() {
		s.status = StatusEnded
		events = append(events, Event{Type: EvtSessionEnded})
	}
	return events
}
