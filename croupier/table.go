package croupier

import (
	"bytes"
	"fmt"
	"strconv"

	"cardtable/game"
	"cardtable/wire"
)

// TableState enumerates the lifecycle of a table. Command validity is a
// pure function of the current state.
type TableState string

const (
	StateOpen    TableState = "OPEN"
	StateFull    TableState = "FULL"
	StateShuffle TableState = "SHUFFLE"
	StateGame    TableState = "game"
	StateAborted TableState = "aborted"
)

// MaxPlayers is fixed by the game: four seats, thirteen cards each.
const MaxPlayers = 4

var (
	errAlreadySeated    = fmt.Errorf("already inside")
	errTableFull        = fmt.Errorf("table is full")
	errBadState         = fmt.Errorf("action not valid in current table state")
	errNotSeated        = fmt.Errorf("player is not in this table")
	errAlreadyConfirmed = fmt.Errorf("player already confirmed")
	errAlreadyValidated = fmt.Errorf("player already submitted validation data")
)

// Player is one occupied seat.
type Player struct {
	Num       int
	Confirmed bool
	Client    *client
}

// Table owns the lobby and the pre-game validation for one game instance.
type Table struct {
	ID      string
	Title   string
	State   TableState
	Players []*Player

	validations map[int]wire.PassingData
	Engine      game.Engine
}

func NewTable(id, title string) *Table {
	if title == "" {
		title = "Hearts"
	}
	return &Table{
		ID:          id,
		Title:       title,
		State:       StateOpen,
		validations: make(map[int]wire.PassingData),
	}
}

// SeatOf returns the seat of a client, or -1.
func (t *Table) SeatOf(c *client) int {
	for _, p := range t.Players {
		if p.Client.id == c.id {
			return p.Num
		}
	}
	return -1
}

func (t *Table) AddPlayer(c *client) error {
	if t.State != StateOpen {
		return errBadState
	}
	if t.SeatOf(c) >= 0 {
		return errAlreadySeated
	}
	if len(t.Players) >= MaxPlayers {
		return errTableFull
	}
	t.Players = append(t.Players, &Player{Num: len(t.Players), Client: c})
	return nil
}

func (t *Table) IsFull() bool {
	return len(t.Players) == MaxPlayers
}

// RemovePlayer vacates a seat, renumbers the rest contiguously and resets
// every confirmation.
func (t *Table) RemovePlayer(num int) {
	players := make([]*Player, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Num == num {
			continue
		}
		if p.Num > num {
			p.Num--
		}
		p.Confirmed = false
		players = append(players, p)
	}
	t.Players = players
}

// Confirm marks a seat as having accepted the lineup. Only valid once per
// seat, and only while the table is full.
func (t *Table) Confirm(c *client) (int, error) {
	if t.State != StateFull {
		return 0, errBadState
	}
	seat := t.SeatOf(c)
	if seat < 0 {
		return 0, errNotSeated
	}
	p := t.Players[seat]
	if p.Confirmed {
		return 0, errAlreadyConfirmed
	}
	p.Confirmed = true
	return seat, nil
}

func (t *Table) AllConfirmed() bool {
	if !t.IsFull() {
		return false
	}
	for _, p := range t.Players {
		if !p.Confirmed {
			return false
		}
	}
	return true
}

// AddValidation stores one seat's passing data, once.
func (t *Table) AddValidation(seat int, data wire.PassingData) error {
	if t.State != StateShuffle {
		return errBadState
	}
	if _, ok := t.validations[seat]; ok {
		return errAlreadyValidated
	}
	t.validations[seat] = data
	return nil
}

func (t *Table) ValidationsComplete() bool {
	return len(t.validations) == MaxPlayers
}

// ValidationsAgree checks, for every seat index, that all four submitted
// copies carry byte-identical commitment digests, openings, deck keys and
// IVs.
func (t *Table) ValidationsAgree() bool {
	base, ok := t.validations[0]
	if !ok {
		return false
	}
	for i := 0; i < MaxPlayers; i++ {
		seat := strconv.Itoa(i)
		baseCommit, ok := base.Commits[seat]
		if !ok {
			return false
		}
		baseKey, ok := base.DeckKeys[seat]
		if !ok {
			return false
		}
		for k := 1; k < MaxPlayers; k++ {
			other, ok := t.validations[k]
			if !ok {
				return false
			}
			commit, ok := other.Commits[seat]
			if !ok || !commit.Equal(baseCommit) {
				return false
			}
			key, ok := other.DeckKeys[seat]
			if !ok || !bytes.Equal(key.Key, baseKey.Key) || !bytes.Equal(key.IV, baseKey.IV) {
				return false
			}
		}
	}
	return true
}

func (t *Table) Summary() wire.TableSummary {
	return wire.TableSummary{
		ID:          t.ID,
		Title:       t.Title,
		PlayerCount: len(t.Players),
		MaxPlayers:  MaxPlayers,
	}
}

func (t *Table) PlayerInfos() []wire.PlayerInfo {
	infos := make([]wire.PlayerInfo, 0, len(t.Players))
	for _, p := range t.Players {
		infos = append(infos, wire.PlayerInfo{
			Num:    p.Num,
			Name:   p.Client.name,
			PubKey: p.Client.peer.PubKey,
			IV:     p.Client.peer.IV,
		})
	}
	return infos
}

func (t *Table) Info(c *client) wire.TableInfo {
	return wire.TableInfo{
		TableID:   t.ID,
		Title:     t.Title,
		PlayerNum: t.SeatOf(c),
		Players:   t.PlayerInfos(),
	}
}
