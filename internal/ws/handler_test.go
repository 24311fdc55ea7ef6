package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/housie-backend/internal/auth"
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/hub"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
	"github.com/DoyleJ11/housie-backend/pkg/types"
)

func startServer(t *testing.T) (*httptest.Server, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(ctx)
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.EnsureLobby{Code: "MAIN", Reply: reply}
	require.NotNil(t, <-reply)

	srv := httptest.NewServer(Handler(h, Options{Gate: auth.NewGate("letmein"), Log: zap.NewNop()}))
	t.Cleanup(srv.Close)
	return srv, ctx
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?code=MAIN"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	first := read(t, ctx, conn)
	require.Equal(t, types.MsgStateSnapshot, first.Type)
	return conn
}

func write(t *testing.T, ctx context.Context, conn *websocket.Conn, m types.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readType skips messages until one of typ arrives.
func readType(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) types.ServerMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := read(t, ctx, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message", typ)
	return types.ServerMessage{}
}

func TestHandler_RejectsMissingOrUnknownCode(t *testing.T) {
	srv, _ := startServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/?code=NOPE")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_GameRoundTrip(t *testing.T) {
	srv, ctx := startServer(t)
	host := dial(t, ctx, srv)
	player := dial(t, ctx, srv)

	write(t, ctx, host, types.ClientMessage{Type: types.MsgJoin, Name: "Host", Secret: "letmein"})
	roster := readType(t, ctx, host, types.MsgRosterUpdated)
	require.Len(t, roster.Players, 1)
	assert.True(t, roster.Players[0].IsHost)

	write(t, ctx, player, types.ClientMessage{Type: types.MsgJoin, Name: "Alice", Secret: "wrong"})
	assigned := readType(t, ctx, player, types.MsgTicketAssigned)
	require.NotNil(t, assigned.Ticket)
	assert.Equal(t, 1, assigned.Ticket.Serial)
	assert.Len(t, assigned.Ticket.Rows, 3)

	write(t, ctx, player, types.ClientMessage{Type: types.MsgStart})
	rej := readType(t, ctx, player, types.MsgCommandRejected)
	assert.Equal(t, "unauthorized", rej.Reject.Reason)

	write(t, ctx, host, types.ClientMessage{Type: types.MsgStart})
	started := readType(t, ctx, player, types.MsgSessionStarted)
	assert.NotEmpty(t, started.Prizes)

	write(t, ctx, host, types.ClientMessage{Type: types.MsgCallNumber})
	called := readType(t, ctx, player, types.MsgNumberCalled)
	assert.GreaterOrEqual(t, called.Number, 1)
	assert.Equal(t, []int{called.Number}, called.History)
}

func TestHandler_BadInput(t *testing.T) {
	srv, ctx := startServer(t)
	conn := dial(t, ctx, srv)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	msg := read(t, ctx, conn)
	assert.Equal(t, types.MsgCommandRejected, msg.Type)
	assert.Equal(t, "bad_request", msg.Reject.Reason)

	write(t, ctx, conn, types.ClientMessage{Type: "teleport"})
	msg = read(t, ctx, conn)
	assert.Equal(t, "teleport", msg.Reject.Command)
}

func TestToLobbyMsg(t *testing.T) {
	gate := auth.NewGate("pw")

	m, ok := toLobbyMsg("c1", types.ClientMessage{Type: types.MsgJoin, Name: "n", Secret: "pw", Serial: 9}, gate)
	require.True(t, ok)
	fc := m.(lobby.FromClient)
	assert.Equal(t, engine.CmdJoin, fc.Cmd.Type)
	assert.True(t, fc.Cmd.IsHost)
	assert.Equal(t, 9, fc.Cmd.Serial)

	m, ok = toLobbyMsg("c1", types.ClientMessage{Type: types.MsgAutoCall, IntervalMs: 1500}, gate)
	require.True(t, ok)
	assert.Equal(t, lobby.AutoCall{ClientID: "c1", Interval: 1500 * time.Millisecond}, m)

	_, ok = toLobbyMsg("c1", types.ClientMessage{Type: types.MsgAutoCall, IntervalMs: -1}, gate)
	assert.False(t, ok)

	m, ok = toLobbyMsg("c1", types.ClientMessage{Type: types.MsgClaimPrize, PrizeID: "FirstLine"}, nil)
	require.True(t, ok)
	assert.Equal(t, "FirstLine", m.(lobby.FromClient).Cmd.PrizeID)
}
