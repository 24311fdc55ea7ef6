package ws

import (
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
	"github.com/DoyleJ11/housie-backend/internal/prize"
	"github.com/DoyleJ11/housie-backend/internal/ticket"
	"github.com/DoyleJ11/housie-backend/pkg/types"
)

var eventNames = map[engine.EventType]string{
	engine.EvtRosterUpdated:  types.MsgRosterUpdated,
	engine.EvtTicketAssigned: types.MsgTicketAssigned,
	engine.EvtSessionStarted: types.MsgSessionStarted,
	engine.EvtNumberCalled:   types.MsgNumberCalled,
	engine.EvtPrizeWon:       types.MsgPrizeWon,
	engine.EvtSessionEnded:   types.MsgSessionEnded,
	engine.EvtSessionReset:   types.MsgSessionReset,
}

// ToServerMessage encodes one lobby update for the wire.
func ToServerMessage(out lobby.Outbound) types.ServerMessage {
	msg := types.ServerMessage{Version: out.Version}
	switch {
	case out.Snapshot != nil:
		snap := ToSnapshot(*out.Snapshot)
		msg.Type = types.MsgStateSnapshot
		msg.State = &snap

	case out.Reject != nil:
		msg.Type = types.MsgCommandRejected
		msg.Reject = &types.Rejection{
			Command: string(out.Reject.Command),
			Reason:  out.Reject.Reason,
			Error:   out.Reject.Error,
		}

	case out.Event != nil:
		ev := out.Event
		msg.Type = eventNames[ev.Type]
		switch ev.Type {
		case engine.EvtRosterUpdated:
			msg.Players = toPlayers(ev.Players)
			if msg.Players == nil {
				msg.Players = []types.Player{}
			}
		case engine.EvtTicketAssigned:
			tk := ToTicket(ev.Serial, ev.Ticket)
			msg.Ticket = &tk
		case engine.EvtSessionStarted:
			msg.Prizes = toPrizes(ev.Prizes)
		case engine.EvtNumberCalled:
			msg.Number = ev.Number
			msg.History = ev.History
		case engine.EvtPrizeWon:
			w := toWin(*ev.Claim)
			msg.Win = &w
		}
	}
	return msg
}

func ToSnapshot(s engine.Snapshot) types.Snapshot {
	out := types.Snapshot{
		Status:    string(s.Status),
		ClaimMode: string(s.Rules.ClaimMode),
		PoolSize:  s.Rules.PoolSize,
		Players:   toPlayers(s.Players),
		History:   s.History,
		Current:   s.Current,
		Prizes:    toPrizes(s.Prizes),
		Wins:      make([]types.Win, 0, len(s.Claims)),
		HasHost:   s.HostID != "",
	}
	if out.Players == nil {
		out.Players = []types.Player{}
	}
	if out.History == nil {
		out.History = []int{}
	}
	out.Wins = append(out.Wins, ToWins(s.Claims)...)
	return out
}

func ToWins(claims []prize.Claim) []types.Win {
	out := make([]types.Win, 0, len(claims))
	for _, c := range claims {
		out = append(out, toWin(c))
	}
	return out
}

func ToTicket(serial int, t ticket.Ticket) types.Ticket {
	rows := make([][9]int, ticket.Rows)
	for i := range t {
		rows[i] = t[i]
	}
	return types.Ticket{Serial: serial, Rows: rows}
}

func toPlayers(ps []engine.Player) []types.Player {
	if len(ps) == 0 {
		return nil
	}
	out := make([]types.Player, len(ps))
	for i, p := range ps {
		out[i] = types.Player{ID: p.ID, Name: p.Name, Serials: p.Serials, IsHost: p.IsHost}
	}
	return out
}

func toPrizes(ps []engine.PrizeInfo) []types.Prize {
	out := make([]types.Prize, len(ps))
	for i, p := range ps {
		out[i] = types.Prize{ID: p.ID, Name: p.Name}
	}
	return out
}

func toWin(c prize.Claim) types.Win {
	return types.Win{
		PrizeID:      c.PrizeID,
		PrizeName:    c.PrizeName,
		PlayerID:     c.PlayerID,
		Player:       c.PlayerName,
		TicketSerial: c.Serial,
		Position:     c.Position,
	}
}
