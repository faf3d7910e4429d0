package wire

import "encoding/json"

// FromServer marks the croupier as the origin of a relayed payload.
const FromServer = "croupier"

// ServerHello is the first message on a new connection: the server's fresh
// channel parameters, signed with the key they contain.
type ServerHello struct {
	PubKey []byte `json:"pub_key"`
	IV     []byte `json:"iv"`
}

// TableSummary is one row of the lobby listing.
type TableSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

type TableList struct {
	Tables []TableSummary `json:"table_list"`
}

// PlayerInfo is the public view of a seated player.
type PlayerInfo struct {
	Num    int    `json:"num"`
	Name   string `json:"name"`
	PubKey []byte `json:"pub_key"`
	IV     []byte `json:"iv"`
}

type TableInfo struct {
	TableID   string       `json:"table_id"`
	Title     string       `json:"title"`
	PlayerNum int          `json:"player_num"`
	Players   []PlayerInfo `json:"players"`
}

type TableInfoReply struct {
	TableInfo TableInfo `json:"table_info"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

// Update kinds carried by table_update broadcasts.
const (
	UpdateNewPlayer          = "new_player"
	UpdatePlayerLeft         = "player_left"
	UpdatePlayerConfirmation = "player_confirmation"
	UpdateTableState         = "table_state"
)

type TableUpdate struct {
	Update     string      `json:"update"`
	NewPlayer  *PlayerInfo `json:"new_player,omitempty"`
	PlayerNum  int         `json:"player_num,omitempty"`
	TableState string      `json:"table_state,omitempty"`
}

type TableUpdateMsg struct {
	TableUpdate TableUpdate `json:"table_update"`
}

// Relayed is what the addressed seat receives for a relay intent: the
// payload verbatim plus the origin seat ("croupier" for server deals).
type Relayed struct {
	From    string          `json:"from"`
	Relayed json.RawMessage `json:"relayed"`
}

// DeckPayload circulates the passing deck; slot 0 encodes the live count.
type DeckPayload struct {
	Deck []string `json:"deck"`
}

// Game broadcasts once a table is in the game state.
type PlayBroadcast struct {
	Type  string          `json:"type"`
	From  int             `json:"from"`
	Card  string          `json:"card"`
	Proof json.RawMessage `json:"proof,omitempty"`
}

type TrickOutcome struct {
	Type   string `json:"type"`
	Player int    `json:"player"`
	Points int    `json:"points"`
}

type GameOutcome struct {
	Type    string `json:"type"`
	Winners []int  `json:"winners"`
}

const (
	TypePlay         = "play"
	TypeTrickOutcome = "trick_outcome"
	TypeGameOutcome  = "game_outcome"
)
