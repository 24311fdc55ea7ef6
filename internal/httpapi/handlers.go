package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/housie-backend/internal/archive"
	"github.com/DoyleJ11/housie-backend/internal/auth"
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/hub"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
	"github.com/DoyleJ11/housie-backend/internal/prize"
	"github.com/DoyleJ11/housie-backend/internal/ticket"
	"github.com/DoyleJ11/housie-backend/internal/ws"
	"github.com/DoyleJ11/housie-backend/pkg/types"
)

const (
	maxTicketRange = 1000
	defaultResults = 10
	maxResults     = 100
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createLobbyRequest struct {
	ClaimMode           string   `json:"claim_mode,omitempty"`
	Prizes              []string `json:"prizes,omitempty"`
	PoolSize            int      `json:"pool_size,omitempty"`
	MaxTicketsPerPlayer int      `json:"max_tickets_per_player,omitempty"`
	FreezeJoins         bool     `json:"freeze_joins,omitempty"`
}

func CreateLobby(h *hub.Hub, defaults engine.Rules, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		// Serials past ticket.MaxSerial could never be served by the ticket routes.
		if req.PoolSize > ticket.MaxSerial {
			http.Error(w, "pool_size too large", http.StatusBadRequest)
			return
		}
		rules := applyOverrides(defaults, req)

		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if h.Lobby(c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.CreateLobby{Code: code, Rules: &rules, Reply: reply}
		if <-reply == nil {
			http.Error(w, "invalid lobby rules", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func applyOverrides(rules engine.Rules, req createLobbyRequest) engine.Rules {
	rules.Prizes = slices.Clone(rules.Prizes)
	if req.ClaimMode != "" {
		rules.ClaimMode = engine.ClaimMode(req.ClaimMode)
	}
	if len(req.Prizes) > 0 {
		rules.Prizes = req.Prizes
	}
	if req.PoolSize > 0 {
		rules.PoolSize = req.PoolSize
	}
	if req.MaxTicketsPerPlayer > 0 {
		rules.MaxTicketsPerPlayer = req.MaxTicketsPerPlayer
	}
	if req.FreezeJoins {
		rules.FreezeJoinsWhenRunning = true
	}
	return rules
}

func LobbyState(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := h.Lobby(chi.URLParam(r, "code"))
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		view, err := lb.State(r.Context())
		if err != nil {
			http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Version int            `json:"version"`
			Clients int            `json:"clients"`
			State   types.Snapshot `json:"state"`
		}{Version: view.Version, Clients: view.NumClients, State: ws.ToSnapshot(view.State)})
	}
}

type resultJSON struct {
	EndedAt time.Time   `json:"ended_at"`
	Calls   []int       `json:"calls"`
	Players int         `json:"players"`
	Wins    []types.Win `json:"wins"`
}

// RecentResults lists archived games for a room, newest first.
func RecentResults(store archive.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultResults
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxResults {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		code := chi.URLParam(r, "code")
		results, err := store.Recent(r.Context(), code, limit)
		if err != nil {
			log.Warn("load results", zap.String("room", code), zap.Error(err))
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)
			return
		}
		out := make([]resultJSON, 0, len(results))
		for _, res := range results {
			item := resultJSON{EndedAt: res.EndedAt, Calls: res.Calls, Players: res.Players, Wins: ws.ToWins(res.Wins)}
			if item.Calls == nil {
				item.Calls = []int{}
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetTicket(w http.ResponseWriter, r *http.Request) {
	serial, err := strconv.Atoi(chi.URLParam(r, "serial"))
	if err != nil || serial < 1 || serial > ticket.MaxSerial {
		http.Error(w, "bad serial", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ws.ToTicket(serial, ticket.Generate(serial)))
}

func ListTickets(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil || from < 1 || to < from || to > ticket.MaxSerial || to-from+1 > maxTicketRange {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	tickets, err := ticket.GenerateRange(r.Context(), from, to, runtime.GOMAXPROCS(0))
	if err != nil {
		http.Error(w, "generation cancelled", http.StatusServiceUnavailable)
		return
	}
	out := make([]types.Ticket, len(tickets))
	for i, nt := range tickets {
		out[i] = ws.ToTicket(nt.Serial, nt.Ticket)
	}
	writeJSON(w, http.StatusOK, out)
}

func ListPrizes(w http.ResponseWriter, r *http.Request) {
	out := make([]types.Prize, 0)
	for _, id := range prize.Known() {
		p, _ := prize.Lookup(id)
		out = append(out, types.Prize{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// HostLogin lets a client check the shared secret before joining as host.
func HostLogin(gate *auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ok := gate.IsHost(req.Password)
		status := http.StatusOK
		if !ok {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, struct {
			Success bool `json:"success"`
		}{Success: ok})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
