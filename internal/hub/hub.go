package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	Rules *engine.Rules // nil uses the hub defaults
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ListLobbies struct {
	Reply chan []string
}

type Hub struct {
	inbox     chan HubMsg
	lobbies   map[string]*lobby.Lobby
	rules     engine.Rules
	lobbyOpts []lobby.Option
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Option func(*Hub)

// WithRules sets the rules for lobbies created without their own.
func WithRules(r engine.Rules) Option { return func(h *Hub) { h.rules = r } }

// WithLobbyOptions is applied to every lobby the hub creates.
func WithLobbyOptions(opts ...lobby.Option) Option {
	return func(h *Hub) { h.lobbyOpts = append(h.lobbyOpts, opts...) }
}

func WithLogger(log *zap.Logger) Option { return func(h *Hub) { h.log = log } }

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		rules:   engine.DefaultRules(),
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Lobby looks up a lobby by code, returning nil when unknown.
func (h *Hub) Lobby(code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- GetLobby{Code: code, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				rules := h.rules
				if msg.Rules != nil {
					rules = *msg.Rules
				}
				msg.Reply <- h.create(msg.Code, rules) // nil when the rules are invalid

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.create(msg.Code, h.rules)

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Send(lobby.Shutdown{})
					delete(h.lobbies, msg.Code)
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(code string, rules engine.Rules) *lobby.Lobby {
	session, err := engine.NewSession(rules, nil)
	if err != nil {
		h.log.Warn("lobby rules rejected", zap.String("room", code), zap.Error(err))
		return nil
	}
	opts := append([]lobby.Option{lobby.WithCode(code), lobby.WithLogger(h.log)}, h.lobbyOpts...)
	lb := lobby.NewLobby(h.ctx, session, opts...)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("room", code))
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Send(lobby.Shutdown{})
	}
	clear(h.lobbies)
	h.cancel()
}
