package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/DoyleJ11/housie-backend/internal/caller"
	"github.com/DoyleJ11/housie-backend/internal/prize"
	"github.com/DoyleJ11/housie-backend/internal/ticket"
)

var ErrUnauthorized = errors.New("host privilege required")
var ErrInvalidState = errors.New("command not valid in current state")
var ErrCapacityExceeded = errors.New("no tickets left")
var ErrHostTaken = errors.New("host role already held")
var ErrSerialTaken = errors.New("ticket serial unavailable")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrAlreadyJoined = errors.New("already joined")
var ErrBadRequest = errors.New("bad request")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Errors raised by the caller and prize engine surface unchanged.
var (
	ErrExhausted      = caller.ErrExhausted
	ErrAlreadyClaimed = prize.ErrAlreadyClaimed
	ErrNotYetEligible = prize.ErrNotYetEligible
	ErrUnknownPrize   = prize.ErrUnknownPrize
)

type Status string

const (
	StatusLobby   Status = "lobby"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

type ClaimMode string

const (
	// ClaimAuto grants prizes after every call without player action.
	ClaimAuto ClaimMode = "auto"
	// ClaimManual grants prizes only to validated player claims.
	ClaimManual ClaimMode = "manual"
)

type Rules struct {
	PoolSize               int
	MaxTicketsPerPlayer    int
	FreezeJoinsWhenRunning bool
	ClaimMode              ClaimMode
	Prizes                 []string
}

type Player struct {
	ID      string
	Name    string
	Serials []int
	IsHost  bool
}

type PrizeInfo struct {
	ID   string
	Name string
}

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdBookTicket CommandType = "BookTicket"
	CmdStart      CommandType = "Start"
	CmdCallNumber CommandType = "CallNumber"
	CmdClaimPrize CommandType = "ClaimPrize"
	CmdReset      CommandType = "Reset"
	CmdDisconnect CommandType = "Disconnect"
)

/*
	CmdJoin       -> EvtTicketAssigned (joiner only) -> EvtRosterUpdated
	CmdBookTicket -> EvtTicketAssigned (joiner only) -> EvtRosterUpdated
	CmdStart      -> EvtSessionStarted
	CmdCallNumber -> EvtNumberCalled -> EvtPrizeWon* -> EvtSessionEnded?
	CmdClaimPrize -> EvtPrizeWon -> EvtSessionEnded?
	CmdReset      -> EvtSessionReset -> EvtRosterUpdated
	CmdDisconnect -> EvtRosterUpdated
*/

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	// IsHost is the result of the shared-secret check on join.
	IsHost  bool
	Serial  int
	PrizeID string
}

type EventType string

const (
	EvtRosterUpdated  EventType = "rosterUpdated"
	EvtTicketAssigned EventType = "ticketAssigned"
	EvtSessionStarted EventType = "sessionStarted"
	EvtNumberCalled   EventType = "numberCalled"
	EvtPrizeWon       EventType = "prizeWon"
	EvtSessionEnded   EventType = "sessionEnded"
	EvtSessionReset   EventType = "sessionReset"
)

type Event struct {
	Type EventType
	// To addresses a single player; empty means everyone.
	To      string
	Players []Player
	Prizes  []PrizeInfo
	Number  int
	History []int
	Claim   *prize.Claim
	Serial  int
	Ticket  ticket.Ticket
}

// Session is the authoritative game state. It is not safe for concurrent use:
// the owning lobby applies one command at a time.
type Session struct {
	rules   Rules
	status  Status
	players map[string]*Player
	order   []string
	held    map[int]string
	retired map[int]bool
	host    string
	caller  *caller.Caller
	prizes  *prize.Engine
	tickets map[int]ticket.Ticket
}

// NewSession builds a session in the lobby state. src feeds the number
// caller; nil picks an unseeded source.
func NewSession(rules Rules, src *rand.Rand) (*Session, error) {
	rules = rules.withDefaults()
	if rules.ClaimMode != ClaimAuto && rules.ClaimMode != ClaimManual {
		return nil, fmt.Errorf("%w: claim mode %q", ErrBadRequest, rules.ClaimMode)
	}
	pe, err := prize.NewEngine(rules.Prizes)
	if err != nil {
		return nil, err
	}
	s := &Session{
		rules:   rules,
		caller:  caller.New(src),
		prizes:  pe,
		tickets: make(map[int]ticket.Ticket),
	}
	s.clear()
	return s, nil
}

func (s *Session) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return s.join(cmd)
	case CmdBookTicket:
		return s.bookTicket(cmd)
	case CmdStart:
		return s.start(cmd)
	case CmdCallNumber:
		return s.callNumber(cmd)
	case CmdClaimPrize:
		return s.claimPrize(cmd)
	case CmdReset:
		return s.reset(cmd)
	case CmdDisconnect:
		return s.disconnect(cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func (s *Session) join(cmd Command) ([]Event, error) {
	name := strings.TrimSpace(cmd.Name)
	if cmd.PlayerID == "" || name == "" {
		return nil, fmt.Errorf("%w: name required", ErrBadRequest)
	}
	if _, ok := s.players[cmd.PlayerID]; ok {
		return nil, ErrAlreadyJoined
	}

	// The host may rejoin in any state so it can always reset.
	if cmd.IsHost {
		if s.host != "" {
			return nil, ErrHostTaken
		}
		s.addPlayer(&Player{ID: cmd.PlayerID, Name: name, IsHost: true})
		s.host = cmd.PlayerID
		return []Event{s.roster()}, nil
	}

	if err := s.canTakeTicket(); err != nil {
		return nil, err
	}
	serial, err := s.allocate(cmd.Serial)
	if err != nil {
		return nil, err
	}
	p := &Player{ID: cmd.PlayerID, Name: name}
	s.addPlayer(p)
	s.hold(p, serial)
	return []Event{s.assigned(p.ID, serial), s.roster()}, nil
}

func (s *Session) bookTicket(cmd Command) ([]Event, error) {
	p, ok := s.players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.IsHost {
		return nil, fmt.Errorf("%w: host does not hold tickets", ErrInvalidState)
	}
	if err := s.canTakeTicket(); err != nil {
		return nil, err
	}
	if len(p.Serials) >= s.rules.MaxTicketsPerPlayer {
		return nil, fmt.Errorf("%w: at most %d tickets per player", ErrCapacityExceeded, s.rules.MaxTicketsPerPlayer)
	}
	serial, err := s.allocate(cmd.Serial)
	if err != nil {
		return nil, err
	}
	s.hold(p, serial)
	return []Event{s.assigned(p.ID, serial), s.roster()}, nil
}

func (s *Session) start(cmd Command) ([]Event, error) {
	if !s.isHost(cmd.PlayerID) {
		return nil, ErrUnauthorized
	}
	switch s.status {
	case StatusRunning:
		return nil, nil
	case StatusEnded:
		return nil, fmt.Errorf("%w: session ended, reset first", ErrInvalidState)
	}

	s.caller.Reset()
	s.prizes.Reset()
	s.status = StatusRunning
	return []Event{{Type: EvtSessionStarted, Prizes: s.prizeList()}}, nil
}

func (s *Session) callNumber(cmd Command) ([]Event, error) {
	if !s.isHost(cmd.PlayerID) {
		return nil, ErrUnauthorized
	}
	if s.status != StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, s.status)
	}

	n, err := s.caller.Next()
	if errors.Is(err, caller.ErrExhausted) {
		s.status = StatusEnded
		return []Event{{Type: EvtSessionEnded}}, ErrExhausted
	}
	if err != nil {
		return nil, err
	}

	events := []Event{{Type: EvtNumberCalled, Number: n, History: s.caller.History()}}
	if s.rules.ClaimMode == ClaimAuto {
		for _, c := range s.prizes.Evaluate(s.caller, s.entries()) {
			events = append(events, wonEvent(c))
		}
	}
	return s.endIfAllClaimed(events), nil
}

func (s *Session) claimPrize(cmd Command) ([]Event, error) {
	p, ok := s.players[cmd.PlayerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if s.status != StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, s.status)
	}

	entries := s.entriesFor(p)
	if cmd.Serial != 0 {
		if !slices.Contains(p.Serials, cmd.Serial) {
			return nil, fmt.Errorf("%w: ticket %d not held", ErrBadRequest, cmd.Serial)
		}
		entries = []prize.Entry{s.entry(p, cmd.Serial)}
	}

	c, err := s.prizes.Claim(cmd.PrizeID, s.caller, entries)
	if err != nil {
		return nil, err
	}
	return s.endIfAllClaimed([]Event{wonEvent(c)}), nil
}

func (s *Session) reset(cmd Command) ([]Event, error) {
	if !s.isHost(cmd.PlayerID) {
		return nil, ErrUnauthorized
	}
	s.clear()
	return []Event{{Type: EvtSessionReset}, s.roster()}, nil
}

func (s *Session) disconnect(cmd Command) ([]Event, error) {
	p, ok := s.players[cmd.PlayerID]
	if !ok {
		return nil, nil
	}
	for _, serial := range p.Serials {
		delete(s.held, serial)
		// Reissuing mid-game would orphan claims made on the ticket.
		if s.status == StatusRunning {
			s.retired[serial] = true
		}
	}
	if s.host == p.ID {
		s.host = ""
	}
	delete(s.players, p.ID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == p.ID })
	return []Event{s.roster()}, nil
}
