package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/DoyleJ11/housie-backend/internal/archive"
	"github.com/DoyleJ11/housie-backend/internal/engine"
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isLobbyMsg() {}

// AutoCall asks the lobby to call numbers on the host's behalf every
// Interval. A zero Interval stops it.
type AutoCall struct {
	ClientID string
	Interval time.Duration
}

func (AutoCall) isLobbyMsg() {}

type Connect struct {
	ClientID string
	Outbox   chan Outbound // where this client wants to receive updates
}

func (Connect) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct{ gen int }

func (timerFired) isLobbyMsg() {}

// Outbound carries exactly one of Event, Snapshot or Reject.
type Outbound struct {
	Version  int
	Event    *engine.Event
	Snapshot *engine.Snapshot
	Reject   *Rejection
}

type Rejection struct {
	Command engine.CommandType
	Reason  string
	Error   string
}

type View struct {
	Version    int
	NumClients int
	AutoCall   time.Duration
	State      engine.Snapshot
}

type autoCaller struct {
	interval time.Duration
	hostID   string
	gen      int
	timer    *quartz.Timer
}

type Lobby struct {
	code     string
	inbox    chan Msg
	session  *engine.Session
	version  int
	clients  map[string]chan Outbound
	auto     autoCaller
	clock    quartz.Clock
	log      *zap.Logger
	recorder archive.Recorder
	ctx      context.Context
	cancel   context.CancelFunc
}

type Option func(*Lobby)

func WithCode(code string) Option { return func(l *Lobby) { l.code = code } }

func WithClock(c quartz.Clock) Option { return func(l *Lobby) { l.clock = c } }

func WithLogger(log *zap.Logger) Option { return func(l *Lobby) { l.log = log } }

func WithRecorder(r archive.Recorder) Option { return func(l *Lobby) { l.recorder = r } }

func NewLobby(parent context.Context, session *engine.Session, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:    make(chan Msg, 64), // Small buffer
		session:  session,
		clients:  make(map[string]chan Outbound),
		clock:    quartz.NewReal(),
		log:      zap.NewNop(),
		recorder: archive.Nop{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("room", l.code))

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Connect:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				snap := l.session.Snapshot()
				l.send(msg.ClientID, Outbound{Version: l.version, Snapshot: &snap})
				l.log.Debug("client connected", zap.String("client", msg.ClientID), zap.Int("clients", len(l.clients)))

			case Leave:
				delete(l.clients, msg.ClientID)
				l.apply(msg.ClientID, engine.Command{Type: engine.CmdDisconnect, PlayerID: msg.ClientID})

			case FromClient:
				msg.Cmd.PlayerID = msg.ClientID
				l.apply(msg.ClientID, msg.Cmd)

			case AutoCall:
				l.setAutoCall(msg)

			case timerFired:
				if msg.gen != l.auto.gen || l.auto.interval == 0 {
					break // stale
				}
				l.apply(l.auto.hostID, engine.Command{Type: engine.CmdCallNumber, PlayerID: l.auto.hostID})
				if l.session.Status() == engine.StatusRunning && l.auto.interval > 0 {
					l.armTimer()
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					AutoCall:   l.auto.interval,
					State:      l.session.Snapshot(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply runs one command against the session and fans out the result.
func (l *Lobby) apply(clientID string, cmd engine.Command) {
	events, err := l.session.Apply(cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("client", clientID),
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		if cmd.Type == engine.CmdCallNumber && l.auto.interval > 0 {
			l.stopAutoCall()
		}
		l.send(clientID, Outbound{Version: l.version, Reject: &Rejection{
			Command: cmd.Type,
			Reason:  engine.Reason(err),
			Error:   err.Error(),
		}})
	}
	if len(events) == 0 {
		return
	}

	l.version++
	for i := range events {
		ev := events[i]
		out := Outbound{Version: l.version, Event: &ev}
		if ev.To != "" {
			l.send(ev.To, out)
		} else {
			l.broadcast(out)
		}

		switch ev.Type {
		case engine.EvtSessionEnded:
			l.stopAutoCall()
			l.record()
		case engine.EvtSessionReset:
			l.stopAutoCall()
		case engine.EvtPrizeWon:
			l.log.Info("prize won",
				zap.String("prize", ev.Claim.PrizeID),
				zap.String("player", ev.Claim.PlayerName),
				zap.Int("serial", ev.Claim.Serial),
				zap.Int("position", ev.Claim.Position))
		}
	}
}

func (l *Lobby) setAutoCall(msg AutoCall) {
	if msg.Interval <= 0 {
		l.stopAutoCall()
		return
	}
	var err error
	switch {
	case l.session.HostID() != msg.ClientID:
		err = engine.ErrUnauthorized
	case l.session.Status() != engine.StatusRunning:
		err = fmt.Errorf("%w: %s", engine.ErrInvalidState, l.session.Status())
	}
	if err != nil {
		l.send(msg.ClientID, Outbound{Version: l.version, Reject: &Rejection{
			Command: "AutoCall",
			Reason:  engine.Reason(err),
			Error:   err.Error(),
		}})
		return
	}

	l.auto.interval = msg.Interval
	l.auto.hostID = msg.ClientID
	l.armTimer()
	l.log.Info("auto-call armed", zap.Duration("interval", msg.Interval))
}

func (l *Lobby) armTimer() {
	if l.auto.timer != nil {
		l.auto.timer.Stop()
	}
	l.auto.gen++
	gen := l.auto.gen
	l.auto.timer = l.clock.AfterFunc(l.auto.interval, func() {
		select {
		case l.inbox <- timerFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) stopAutoCall() {
	if l.auto.timer != nil {
		l.auto.timer.Stop()
		l.auto.timer = nil
	}
	l.auto.gen++
	l.auto.interval = 0
	l.auto.hostID = ""
}

// record hands the finished game to the recorder without holding up the loop.
func (l *Lobby) record() {
	snap := l.session.Snapshot()
	players := 0
	for _, p := range snap.Players {
		if !p.IsHost {
			players++
		}
	}
	result := archive.Result{
		RoomCode: l.code,
		EndedAt:  l.clock.Now(),
		Calls:    snap.History,
		Players:  players,
		Wins:     snap.Claims,
	}
	rec, log := l.recorder, l.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.Record(ctx, result); err != nil {
			log.Warn("archive failed", zap.Error(err))
		}
	}()
}

func (l *Lobby) shutdown() {
	l.stopAutoCall()
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) send(clientID string, out Outbound) {
	ch, ok := l.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
		l.drop(clientID, ch)
	}
}

func (l *Lobby) broadcast(out Outbound) {
	for id, ch := range l.clients {
		select {
		case ch <- out:
			//ok
		default:
			l.drop(id, ch)
		}
	}
}

// drop closes a slow client's outbox. Its connection handler turns the close
// into a Leave.
func (l *Lobby) drop(id string, ch chan Outbound) {
	close(ch)
	delete(l.clients, id)
	l.log.Warn("dropped slow client", zap.String("client", id))
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has shut down.
func (l *Lobby) Send(m Msg) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// State returns a consistent view of the lobby.
func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !l.Send(GetState{Reply: reply}) {
		return View{}, context.Canceled
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, context.Canceled
	}
}

func (l *Lobby) Code() string { return l.code }

func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
