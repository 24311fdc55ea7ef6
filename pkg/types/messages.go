// Package types defines the JSON messages exchanged over the websocket.
package types

// Client -> Server
//
//	join:       name, secret?, serial?
//	bookTicket: serial?
//	start, callNumber, reset
//	claimPrize: prize_id, serial?
//	autoCall:   interval_ms (0 stops)
type ClientMessage struct {
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Secret     string `json:"secret,omitempty"`
	Serial     int    `json:"serial,omitempty"`
	PrizeID    string `json:"prize_id,omitempty"`
	IntervalMs int    `json:"interval_ms,omitempty"`
}

const (
	MsgJoin       = "join"
	MsgBookTicket = "bookTicket"
	MsgStart      = "start"
	MsgCallNumber = "callNumber"
	MsgClaimPrize = "claimPrize"
	MsgReset      = "reset"
	MsgAutoCall   = "autoCall"
)

// Server -> Client
const (
	MsgStateSnapshot   = "stateSnapshot"
	MsgRosterUpdated   = "rosterUpdated"
	MsgTicketAssigned  = "ticketAssigned"
	MsgSessionStarted  = "sessionStarted"
	MsgNumberCalled    = "numberCalled"
	MsgPrizeWon        = "prizeWon"
	MsgSessionEnded    = "sessionEnded"
	MsgSessionReset    = "sessionReset"
	MsgCommandRejected = "commandRejected"
)

type ServerMessage struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	State   *Snapshot  `json:"state,omitempty"`
	Players []Player   `json:"players,omitempty"`
	Prizes  []Prize    `json:"prizes,omitempty"`
	Number  int        `json:"number,omitempty"`
	History []int      `json:"history,omitempty"`
	Win     *Win       `json:"win,omitempty"`
	Ticket  *Ticket    `json:"ticket,omitempty"`
	Reject  *Rejection `json:"reject,omitempty"`
}

type Rejection struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}
