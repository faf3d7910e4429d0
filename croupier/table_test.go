package croupier

import (
	"errors"
	"strconv"
	"testing"

	"cardtable/security"
	"cardtable/wire"
)

func testClient(id uint64, name string) *client {
	return &client{connection: &connection{id: id}, name: name}
}

func seatedTable(t *testing.T, n int) (*Table, []*client) {
	t.Helper()
	table := NewTable("t1", "Hearts")
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = testClient(uint64(i+1), "player "+strconv.Itoa(i))
		if err := table.AddPlayer(clients[i]); err != nil {
			t.Fatalf("failed to seat player %d: %v", i, err)
		}
	}
	return table, clients
}

func TestTableSeating(t *testing.T) {
	table, clients := seatedTable(t, MaxPlayers)
	if !table.IsFull() {
		t.Fatal("expected table to be full")
	}
	if err := table.AddPlayer(testClient(99, "late")); !errors.Is(err, errTableFull) {
		t.Fatalf("expected errTableFull, got %v", err)
	}
	if err := table.AddPlayer(clients[0]); !errors.Is(err, errAlreadySeated) {
		t.Fatalf("expected errAlreadySeated, got %v", err)
	}
	for i, c := range clients {
		if table.SeatOf(c) != i {
			t.Fatalf("client %d got seat %d", i, table.SeatOf(c))
		}
	}
}

func TestRemovePlayerRenumbersAndResetsConfirmations(t *testing.T) {
	table, clients := seatedTable(t, MaxPlayers)
	table.State = StateFull
	if _, err := table.Confirm(clients[0]); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	if _, err := table.Confirm(clients[3]); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	table.State = StateOpen
	table.RemovePlayer(1)
	if len(table.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(table.Players))
	}
	for i, p := range table.Players {
		if p.Num != i {
			t.Fatalf("seat numbering not contiguous: position %d holds num %d", i, p.Num)
		}
		if p.Confirmed {
			t.Fatalf("seat %d still confirmed after a departure", i)
		}
	}
	if table.SeatOf(clients[3]) != 2 {
		t.Fatalf("expected last client renumbered to 2, got %d", table.SeatOf(clients[3]))
	}
}

func TestConfirmRules(t *testing.T) {
	table, clients := seatedTable(t, MaxPlayers)
	if _, err := table.Confirm(clients[0]); !errors.Is(err, errBadState) {
		t.Fatalf("expected errBadState while open, got %v", err)
	}
	table.State = StateFull
	for _, c := range clients {
		if _, err := table.Confirm(c); err != nil {
			t.Fatalf("failed to confirm: %v", err)
		}
	}
	if _, err := table.Confirm(clients[0]); !errors.Is(err, errAlreadyConfirmed) {
		t.Fatalf("expected errAlreadyConfirmed, got %v", err)
	}
	if !table.AllConfirmed() {
		t.Fatal("expected all seats confirmed")
	}
	if _, err := table.Confirm(testClient(99, "stranger")); !errors.Is(err, errNotSeated) {
		t.Fatalf("expected errNotSeated, got %v", err)
	}
}

func sharedPassingData(t *testing.T) wire.PassingData {
	t.Helper()
	data := wire.NewPassingData()
	for i := 0; i < MaxPlayers; i++ {
		seat := strconv.Itoa(i)
		data.Commits[seat] = security.Commit([]byte("hand of seat " + seat))
		data.DeckKeys[seat] = wire.DeckKey{
			Key: security.RandomBytes(32),
			IV:  security.RandomBytes(16),
		}
	}
	return data
}

func copyPassingData(data wire.PassingData) wire.PassingData {
	out := wire.NewPassingData()
	out.Merge(data)
	return out
}

func TestValidationsAgree(t *testing.T) {
	table, _ := seatedTable(t, MaxPlayers)
	table.State = StateShuffle
	shared := sharedPassingData(t)
	for i := 0; i < MaxPlayers; i++ {
		if err := table.AddValidation(i, copyPassingData(shared)); err != nil {
			t.Fatalf("failed to add validation %d: %v", i, err)
		}
	}
	if !table.ValidationsComplete() {
		t.Fatal("expected validations to be complete")
	}
	if !table.ValidationsAgree() {
		t.Fatal("expected identical validations to agree")
	}
}

func TestValidationsMismatch(t *testing.T) {
	table, _ := seatedTable(t, MaxPlayers)
	table.State = StateShuffle
	shared := sharedPassingData(t)
	for i := 0; i < MaxPlayers-1; i++ {
		if err := table.AddValidation(i, copyPassingData(shared)); err != nil {
			t.Fatalf("failed to add validation %d: %v", i, err)
		}
	}
	// The last seat claims a different commitment for seat 2.
	forged := copyPassingData(shared)
	forged.Commits["2"] = security.Commit([]byte("substituted hand"))
	if err := table.AddValidation(MaxPlayers-1, forged); err != nil {
		t.Fatalf("failed to add forged validation: %v", err)
	}
	if table.ValidationsAgree() {
		t.Fatal("expected a single diverging entry to break agreement")
	}
}

func TestAddValidationRules(t *testing.T) {
	table, _ := seatedTable(t, MaxPlayers)
	if err := table.AddValidation(0, wire.NewPassingData()); !errors.Is(err, errBadState) {
		t.Fatalf("expected errBadState outside the shuffle, got %v", err)
	}
	table.State = StateShuffle
	if err := table.AddValidation(0, wire.NewPassingData()); err != nil {
		t.Fatalf("failed to add validation: %v", err)
	}
	if err := table.AddValidation(0, wire.NewPassingData()); !errors.Is(err, errAlreadyValidated) {
		t.Fatalf("expected errAlreadyValidated, got %v", err)
	}
}
