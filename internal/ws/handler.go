package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/housie-backend/internal/auth"
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/hub"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
	"github.com/DoyleJ11/housie-backend/pkg/types"
)

const writeTimeout = 3 * time.Second

type Options struct {
	Gate *auth.Gate
	Log  *zap.Logger
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*".
	OriginPatterns []string
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb := h.Lobby(code)
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Outbound, 32)
		clientID := randID(8)
		clog := log.With(zap.String("room", code), zap.String("client", clientID))

		if !lb.Send(lobby.Connect{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "lobby closed")
			return
		}
		defer lb.Send(lobby.Leave{ClientID: clientID})
		clog.Debug("client attached")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			// Outbox closed (slow client or lobby shutdown) or the socket broke.
			defer conn.Close(websocket.StatusGoingAway, "lobby closed the connection")
			for {
				select {
				case <-writeCtx.Done():
					return
				case update, ok := <-out:
					if !ok {
						return
					}
					payload, err := json.Marshal(ToServerMessage(update))
					if err != nil {
						clog.Error("encode update", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
					if err != nil {
						clog.Debug("write failed", zap.Error(err))
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeReject(r.Context(), conn, "", "bad json")
				continue
			}

			msg, ok := toLobbyMsg(clientID, cm, opts.Gate)
			if !ok {
				writeReject(r.Context(), conn, cm.Type, "unknown type")
				continue
			}
			if !lb.Send(msg) {
				return
			}
		}
	}
}

func toLobbyMsg(clientID string, m types.ClientMessage, gate *auth.Gate) (lobby.Msg, bool) {
	var cmd engine.Command
	switch m.Type {
	case types.MsgJoin:
		cmd = engine.Command{Type: engine.CmdJoin, Name: m.Name, Serial: m.Serial, IsHost: gate.IsHost(m.Secret)}
	case types.MsgBookTicket:
		cmd = engine.Command{Type: engine.CmdBookTicket, Serial: m.Serial}
	case types.MsgStart:
		cmd = engine.Command{Type: engine.CmdStart}
	case types.MsgCallNumber:
		cmd = engine.Command{Type: engine.CmdCallNumber}
	case types.MsgClaimPrize:
		cmd = engine.Command{Type: engine.CmdClaimPrize, PrizeID: m.PrizeID, Serial: m.Serial}
	case types.MsgReset:
		cmd = engine.Command{Type: engine.CmdReset}
	case types.MsgAutoCall:
		if m.IntervalMs < 0 {
			return nil, false
		}
		return lobby.AutoCall{ClientID: clientID, Interval: time.Duration(m.IntervalMs) * time.Millisecond}, true
	default:
		return nil, false
	}
	return lobby.FromClient{ClientID: clientID, Cmd: cmd}, true
}

func writeReject(ctx context.Context, conn *websocket.Conn, command, detail string) {
	payload, _ := json.Marshal(types.ServerMessage{
		Type:   types.MsgCommandRejected,
		Reject: &types.Rejection{Command: command, Reason: "bad_request", Error: detail},
	})
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
