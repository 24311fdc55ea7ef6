package lobby

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/housie-backend/internal/archive"
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/prize"
)

// helper: receive one update with a timeout so tests never hang
func recv(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return out
	case <-time.After(within):
		t.Fatalf("timed out waiting for update")
		return Outbound{} // unreachable
	}
}

func recvNone(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further updates possible
			return
		}
		t.Fatalf("expected no update within %v, but got: %+v", within, out)
	case <-time.After(within):
		// good: nothing arrived
	}
}

// recvEvent skips updates until an event of typ arrives.
func recvEvent(t *testing.T, ch <-chan Outbound, typ engine.EventType) engine.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case out, ok := <-ch:
			require.True(t, ok, "outbox closed waiting for %s", typ)
			if out.Event != nil && out.Event.Type == typ {
				return *out.Event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func recvReject(t *testing.T, ch <-chan Outbound) Rejection {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case out, ok := <-ch:
			require.True(t, ok, "outbox closed waiting for rejection")
			if out.Reject != nil {
				return *out.Reject
			}
		case <-deadline:
			t.Fatalf("timed out waiting for rejection")
		}
	}
}

func drain(ch <-chan Outbound) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func newSession(t *testing.T, rules engine.Rules) *engine.Session {
	t.Helper()
	s, err := engine.NewSession(rules, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	return s
}

func apply(t *testing.T, s *engine.Session, cmd engine.Command) {
	t.Helper()
	_, err := s.Apply(cmd)
	require.NoError(t, err)
}

func connect(t *testing.T, l *Lobby, id string, buf int) chan Outbound {
	t.Helper()
	out := make(chan Outbound, buf)
	l.Inbox() <- Connect{ClientID: id, Outbox: out}
	first := recv(t, out, 100*time.Millisecond)
	require.NotNil(t, first.Snapshot, "connect must deliver a snapshot")
	return out
}

type chanRecorder struct{ results chan archive.Result }

func (c chanRecorder) Record(_ context.Context, r archive.Result) error {
	c.results <- r
	return nil
}

func TestLobby_ConnectSendsSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, newSession(t, engine.Rules{}), WithLogger(zaptest.NewLogger(t)), WithCode("MAIN"))
	out := make(chan Outbound, 2)
	l.Inbox() <- Connect{ClientID: "c1", Outbox: out}

	first := recv(t, out, 100*time.Millisecond)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, engine.StatusLobby, first.Snapshot.Status)
	assert.Equal(t, "MAIN", l.Code())

	l.Inbox() <- Shutdown{}
}

func TestLobby_JoinTicketOnlyToJoiner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, newSession(t, engine.Rules{}))
	alice := connect(t, l, "alice", 8)
	bob := connect(t, l, "bob", 8)

	l.Inbox() <- FromClient{ClientID: "alice", Cmd: engine.Command{Type: engine.CmdJoin, Name: "Alice"}}

	assigned := recv(t, alice, 100*time.Millisecond)
	require.NotNil(t, assigned.Event)
	assert.Equal(t, engine.EvtTicketAssigned, assigned.Event.Type)
	assert.Equal(t, 1, assigned.Event.Serial)
	assert.Equal(t, 1, assigned.Version)

	roster := recv(t, bob, 100*time.Millisecond)
	require.NotNil(t, roster.Event)
	assert.Equal(t, engine.EvtRosterUpdated, roster.Event.Type)
	require.Len(t, roster.Event.Players, 1)
	assert.Equal(t, "Alice", roster.Event.Players[0].Name)
	recvEvent(t, alice, engine.EvtRosterUpdated)
}

func TestLobby_NonHostStartRejectedOnlyToIssuer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSession(t, engine.Rules{})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "host", Name: "Host", IsHost: true})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "alice", Name: "Alice"})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "bob", Name: "Bob"})

	l := NewLobby(ctx, s)
	host := connect(t, l, "host", 8)
	alice := connect(t, l, "alice", 8)
	bob := connect(t, l, "bob", 8)

	l.Inbox() <- FromClient{ClientID: "alice", Cmd: engine.Command{Type: engine.CmdStart}}
	rej := recvReject(t, alice)
	assert.Equal(t, "unauthorized", rej.Reason)
	assert.Equal(t, engine.CmdStart, rej.Command)
	recvNone(t, bob, 50*time.Millisecond)
	recvNone(t, host, 10*time.Millisecond)

	view, err := l.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusLobby, view.State.Status)

	l.Inbox() <- FromClient{ClientID: "host", Cmd: engine.Command{Type: engine.CmdStart}}
	for _, ch := range []chan Outbound{host, alice, bob} {
		ev := recvEvent(t, ch, engine.EvtSessionStarted)
		assert.Len(t, ev.Prizes, len(prize.DefaultList))
	}

	view, err = l.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusRunning, view.State.Status)
	assert.Equal(t, 3, view.NumClients)
}

func TestLobby_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSession(t, engine.Rules{ClaimMode: engine.ClaimManual})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "host", Name: "Host", IsHost: true})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "alice", Name: "Alice"})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "bob", Name: "Bob"})
	apply(t, s, engine.Command{Type: engine.CmdStart, PlayerID: "host"})

	// Call until both players hold a complete first line.
	need := append(s.Ticket(1).Row(0), s.Ticket(2).Row(0)...)
	for i := 0; i < 90; i++ {
		history := s.Snapshot().History
		done := true
		for _, n := range need {
			found := false
			for _, c := range history {
				if c == n {
					found = true
					break
				}
			}
			done = done && found
		}
		if done {
			break
		}
		apply(t, s, engine.Command{Type: engine.CmdCallNumber, PlayerID: "host"})
	}

	l := NewLobby(ctx, s)
	host := connect(t, l, "host", 16)
	alice := connect(t, l, "alice", 16)
	bob := connect(t, l, "bob", 16)

	var wg sync.WaitGroup
	for _, id := range []string{"alice", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Inbox() <- FromClient{ClientID: id, Cmd: engine.Command{Type: engine.CmdClaimPrize, PrizeID: prize.FirstLine}}
		}()
	}
	wg.Wait()

	won := recvEvent(t, host, engine.EvtPrizeWon)
	recvNone(t, host, 50*time.Millisecond)

	winner, loser := alice, bob
	if won.Claim.PlayerID == "bob" {
		winner, loser = bob, alice
	}
	recvEvent(t, winner, engine.EvtPrizeWon)
	rej := recvReject(t, loser)
	assert.Equal(t, "already_claimed", rej.Reason)

	view, err := l.State(ctx)
	require.NoError(t, err)
	require.Len(t, view.State.Claims, 1)
	assert.Equal(t, won.Claim.PlayerID, view.State.Claims[0].PlayerID)
}

func TestLobby_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, newSession(t, engine.Rules{}))

	clientOut := make(chan Outbound, 1)
	l.Inbox() <- Connect{ClientID: "ch1", Outbox: clientOut}

	// The snapshot fills the buffer; the roster broadcast overflows it.
	l.Inbox() <- FromClient{ClientID: "other", Cmd: engine.Command{Type: engine.CmdJoin, Name: "Other"}}

	view, err := l.State(ctx)
	require.NoError(t, err)
	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestLobby_LeaveDisconnectsPlayer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, newSession(t, engine.Rules{}))
	alice := connect(t, l, "alice", 8)
	bob := connect(t, l, "bob", 8)

	l.Inbox() <- FromClient{ClientID: "alice", Cmd: engine.Command{Type: engine.CmdJoin, Name: "Alice"}}
	recvEvent(t, bob, engine.EvtRosterUpdated)
	drain(alice)

	l.Inbox() <- Leave{ClientID: "alice"}
	roster := recvEvent(t, bob, engine.EvtRosterUpdated)
	assert.Empty(t, roster.Players)
}

func TestLobby_AutoCallFiresOnClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mClock := quartz.NewMock(t)

	s := newSession(t, engine.Rules{})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "host", Name: "Host", IsHost: true})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "alice", Name: "Alice"})
	apply(t, s, engine.Command{Type: engine.CmdStart, PlayerID: "host"})

	l := NewLobby(ctx, s, WithClock(mClock), WithLogger(zaptest.NewLogger(t)))
	host := connect(t, l, "host", 16)
	alice := connect(t, l, "alice", 16)

	l.Inbox() <- AutoCall{ClientID: "alice", Interval: time.Second}
	assert.Equal(t, "unauthorized", recvReject(t, alice).Reason)

	l.Inbox() <- AutoCall{ClientID: "host", Interval: time.Second}
	view, err := l.State(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Second, view.AutoCall)

	mClock.Advance(time.Second).MustWait(ctx)
	first := recvEvent(t, host, engine.EvtNumberCalled)
	assert.Len(t, first.History, 1)

	_, err = l.State(ctx) // wait for the timer to be re-armed
	require.NoError(t, err)
	mClock.Advance(time.Second).MustWait(ctx)
	second := recvEvent(t, host, engine.EvtNumberCalled)
	assert.Len(t, second.History, 2)

	l.Inbox() <- AutoCall{ClientID: "host", Interval: 0}
	view, err = l.State(ctx)
	require.NoError(t, err)
	assert.Zero(t, view.AutoCall)
	drain(host)

	mClock.Advance(time.Second).MustWait(ctx)
	recvNone(t, host, 50*time.Millisecond)
}

func TestLobby_AutoCallNeedsRunningSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSession(t, engine.Rules{})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "host", Name: "Host", IsHost: true})
	l := NewLobby(ctx, s, WithClock(quartz.NewMock(t)))
	host := connect(t, l, "host", 4)

	l.Inbox() <- AutoCall{ClientID: "host", Interval: time.Second}
	assert.Equal(t, "invalid_state", recvReject(t, host).Reason)
}

func TestLobby_ExhaustedGameIsArchived(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSession(t, engine.Rules{})
	apply(t, s, engine.Command{Type: engine.CmdJoin, PlayerID: "host", Name: "Host", IsHost: true})
	apply(t, s, engine.Command{Type: engine.CmdStart, PlayerID: "host"})

	rec := chanRecorder{results: make(chan archive.Result, 1)}
	l := NewLobby(ctx, s, WithRecorder(rec), WithCode("ROOM1"))
	host := connect(t, l, "host", 256)

	for i := 0; i < 91; i++ {
		l.Inbox() <- FromClient{ClientID: "host", Cmd: engine.Command{Type: engine.CmdCallNumber}}
	}
	// The rejection goes out before the end-of-game broadcast.
	assert.Equal(t, "exhausted", recvReject(t, host).Reason)
	recvEvent(t, host, engine.EvtSessionEnded)

	select {
	case r := <-rec.results:
		assert.Equal(t, "ROOM1", r.RoomCode)
		assert.Len(t, r.Calls, 90)
		assert.Zero(t, r.Players)
	case <-time.After(time.Second):
		t.Fatalf("result was not archived")
	}
}

func TestLobby_ShutdownClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, newSession(t, engine.Rules{}))
	out := connect(t, l, "c1", 2)

	l.Inbox() <- Shutdown{}
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed on shutdown")
	}
	<-l.Done()
	assert.False(t, l.Send(GetState{Reply: make(chan View, 1)}))
}
