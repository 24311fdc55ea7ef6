package types

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Serials []int  `json:"serials,omitempty"`
	IsHost  bool   `json:"is_host,omitempty"`
}

type Prize struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Win struct {
	PrizeID      string `json:"prize_id"`
	PrizeName    string `json:"prize_name"`
	PlayerID     string `json:"player_id"`
	Player       string `json:"player"`
	TicketSerial int    `json:"ticket_serial"`
	Position     int    `json:"position"`
}

// Ticket rows hold 9 cells each; 0 is an empty cell.
type Ticket struct {
	Serial int      `json:"serial"`
	Rows   [][9]int `json:"rows"`
}

type Snapshot struct {
	Status    string   `json:"status"`
	ClaimMode string   `json:"claim_mode"`
	PoolSize  int      `json:"pool_size"`
	Players   []Player `json:"players"`
	History   []int    `json:"history"`
	Current   int      `json:"current,omitempty"`
	Prizes    []Prize  `json:"prizes"`
	Wins      []Win    `json:"wins"`
	HasHost   bool     `json:"has_host"`
}
