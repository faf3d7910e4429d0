package client

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"cardtable/croupier"
	"cardtable/deck"
	"cardtable/game"
	"cardtable/security"
	"cardtable/wire"
)

const tableSeats = croupier.MaxPlayers

// Options tune the shuffle protocol run.
type Options struct {
	// Per-step probabilities of picking a card, swapping a held card
	// back into the deck, and terminating the passing phase once the
	// deck is empty. Zero means "use default".
	PickChance   float64
	SwapChance   float64
	CommitChance float64

	// Trust anchors for validating opponents' certificate chains.
	// Optional: nil skips local chain validation but still checks the
	// card signatures and the session-key binding.
	Trust *security.TrustStore
}

func (o *Options) withDefaults() {
	if o.PickChance == 0 {
		o.PickChance = 0.2
	}
	if o.SwapChance == 0 {
		o.SwapChance = 0.5
	}
	if o.CommitChance == 0 {
		o.CommitChance = 0.5
	}
}

// PeerAuth is the identity a seat pushes to every other seat once the
// table fills: its certificate material and a card signature binding the
// session parameters the server handed around to that certificate.
type PeerAuth struct {
	Name        string   `json:"name"`
	Certificate []byte   `json:"certificate"`
	Chain       [][]byte `json:"chain"`
	PubKey      []byte   `json:"pub_key"`
	IV          []byte   `json:"iv"`
	Signature   []byte   `json:"signature"`
}

func (a PeerAuth) signedBytes() []byte {
	b := []byte(a.Name)
	b = append(b, a.PubKey...)
	return append(b, a.IV...)
}

// Peer-to-peer payload wrappers; the top-level key discriminates.
type introduction struct {
	Auth PeerAuth `json:"auth"`
}

type dataRelay struct {
	PassingData wire.PassingData `json:"passing_data"`
}

// Runner drives one table from the lobby through the shuffle to the
// decrypted hand. All waits are blocking; out-of-phase broadcasts are
// absorbed by the client's deferred-replay buffer.
type Runner struct {
	c    *Client
	opts Options
	log  *logrus.Entry

	Table   wire.TableInfo
	seat    int
	players []wire.PlayerInfo

	layerKey  []byte
	layerIV   []byte
	encrypted []string
	data      wire.PassingData

	// Hand is the plaintext hand, available after DecryptHand.
	Hand []string
}

func NewRunner(c *Client, opts Options) *Runner {
	opts.withDefaults()
	return &Runner{
		c:    c,
		opts: opts,
		log:  c.log.WithField("player", c.Name()),
	}
}

func (r *Runner) Seat() int                  { return r.seat }
func (r *Runner) Players() []wire.PlayerInfo { return r.players }

// Host creates a new table and takes seat 0.
func (r *Runner) Host(title string) error {
	info, err := r.c.CreateTable(title)
	if err != nil {
		return err
	}
	r.adopt(info)
	return nil
}

// Join takes the next free seat at an existing table.
func (r *Runner) Join(tableID string) error {
	info, err := r.c.JoinTable(tableID)
	if err != nil {
		return err
	}
	r.adopt(info)
	return nil
}

func (r *Runner) adopt(info wire.TableInfo) {
	r.Table = info
	r.seat = info.PlayerNum
	r.players = append([]wire.PlayerInfo(nil), info.Players...)
}

// WaitFull consumes lobby broadcasts until the table is full, tracking
// arrivals, departures and the renumbering a departure causes.
func (r *Runner) WaitFull() error {
	for {
		update, err := r.c.NextUpdate()
		if err != nil {
			return err
		}
		switch update.Update {
		case wire.UpdateNewPlayer:
			r.players = append(r.players, *update.NewPlayer)
			r.log.WithField("name", update.NewPlayer.Name).Info("player joined")
		case wire.UpdatePlayerLeft:
			r.dropSeat(update.PlayerNum)
			r.log.WithField("seat", update.PlayerNum).Info("player left")
		case wire.UpdateTableState:
			switch update.TableState {
			case string(croupier.StateFull):
				return nil
			case string(croupier.StateAborted):
				return fmt.Errorf("table aborted while waiting")
			}
		}
	}
}

func (r *Runner) dropSeat(num int) {
	players := make([]wire.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		if p.Num == num {
			continue
		}
		if p.Num > num {
			p.Num--
		}
		players = append(players, p)
	}
	r.players = players
	if num < r.seat {
		r.seat--
	}
}

func (r *Runner) peerParams(seat int) security.PeerParams {
	return security.PeerParams{PubKey: r.players[seat].PubKey, IV: r.players[seat].IV}
}

var errTableAborted = fmt.Errorf("table aborted")

// nextPeer returns the next relayed payload, decrypted when the sender
// wrapped it for this seat. Server-originated relays come back as seat -1.
// An aborted table surfaces as errTableAborted instead of leaving the
// runner waiting for a relay that will never come; other table updates
// arriving mid-wait are stale lobby traffic and are dropped.
func (r *Runner) nextPeer() (int, json.RawMessage, error) {
	for {
		raw, err := r.c.awaitAny("relayed", "table_update")
		if err != nil {
			return 0, nil, err
		}
		if hasField(raw, "table_update") {
			var msg wire.TableUpdateMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				return 0, nil, err
			}
			if msg.TableUpdate.Update == wire.UpdateTableState &&
				msg.TableUpdate.TableState == string(croupier.StateAborted) {
				return 0, nil, errTableAborted
			}
			continue
		}
		var rel wire.Relayed
		if err := json.Unmarshal(raw, &rel); err != nil {
			return 0, nil, err
		}
		if rel.From == wire.FromServer {
			return -1, rel.Relayed, nil
		}
		seat, err := strconv.Atoi(rel.From)
		if err != nil || seat < 0 || seat >= len(r.players) {
			return 0, nil, fmt.Errorf("relay from unknown seat %q", rel.From)
		}
		payload := rel.Relayed
		if len(payload) > 0 && payload[0] == '"' {
			payload, err = r.c.DecryptFrom(r.players[seat].PubKey, payload)
			if err != nil {
				return 0, nil, fmt.Errorf("payload from seat %d: %w", seat, err)
			}
		}
		return seat, payload, nil
	}
}

// AuthenticatePeers exchanges signed identities with every other seat and
// verifies that each one's certificate really owns the session
// parameters the server attributed to it.
func (r *Runner) AuthenticatePeers() error {
	own := PeerAuth{
		Name:        r.c.card.Name(),
		Certificate: r.c.card.Certificate(),
		Chain:       r.c.card.Chain(),
		PubKey:      r.c.params.PubKey,
		IV:          r.c.params.IV,
	}
	sig, err := r.c.card.Sign(own.signedBytes())
	if err != nil {
		return fmt.Errorf("sign introduction: %w", err)
	}
	own.Signature = sig
	payload, err := json.Marshal(introduction{Auth: own})
	if err != nil {
		return err
	}
	for seat := 0; seat < tableSeats; seat++ {
		if seat == r.seat {
			continue
		}
		if err := r.c.Relay(r.Table.TableID, seat, payload); err != nil {
			return err
		}
	}

	authenticated := map[int]bool{r.seat: true}
	for len(authenticated) < tableSeats {
		from, msg, err := r.nextPeer()
		if err != nil {
			return err
		}
		var intro introduction
		if err := json.Unmarshal(msg, &intro); err != nil || len(intro.Auth.Certificate) == 0 {
			return fmt.Errorf("seat %d sent no introduction", from)
		}
		if err := r.verifyPeer(from, intro.Auth); err != nil {
			return fmt.Errorf("seat %d failed authentication: %w", from, err)
		}
		authenticated[from] = true
		r.log.WithFields(logrus.Fields{"seat": from, "name": intro.Auth.Name}).Info("peer authenticated")
	}
	return nil
}

func (r *Runner) verifyPeer(seat int, auth PeerAuth) error {
	claimed := r.players[seat]
	if auth.Name != claimed.Name {
		return fmt.Errorf("name %q does not match seat name %q", auth.Name, claimed.Name)
	}
	if !bytes.Equal(auth.PubKey, claimed.PubKey) || !bytes.Equal(auth.IV, claimed.IV) {
		return fmt.Errorf("session parameters differ from the ones on record")
	}
	if r.opts.Trust != nil && !r.opts.Trust.IsKnown(auth.Certificate) {
		if err := r.opts.Trust.ValidateChain(auth.Certificate, auth.Chain); err != nil {
			return err
		}
	}
	return security.VerifyCardSignature(auth.signedBytes(), auth.Signature, auth.Certificate)
}

// Confirm signs off on the lineup and waits for the table to enter the
// shuffle.
func (r *Runner) Confirm() error {
	identities := make([]wire.Identity, 0, tableSeats)
	for _, p := range r.players {
		identities = append(identities, wire.Identity{Num: p.Num, Name: p.Name})
	}
	if err := r.c.ConfirmPlayers(r.Table.TableID, identities); err != nil {
		return err
	}
	for {
		update, err := r.c.NextUpdate()
		if err != nil {
			return err
		}
		if update.Update != wire.UpdateTableState {
			continue
		}
		switch update.TableState {
		case string(croupier.StateShuffle):
			return nil
		case string(croupier.StateAborted):
			return fmt.Errorf("table aborted before shuffle")
		}
	}
}

// RunShuffle executes the dealing protocol: layer the deck once, then
// keep picking, swapping and reshuffling the circulating deck until it
// is empty and this seat (or another) opens the commitment ring.
func (r *Runner) RunShuffle() error {
	r.data = wire.NewPassingData()
	layered := false
	for {
		from, payload, err := r.nextPeer()
		if err != nil {
			return err
		}
		switch {
		case hasField(payload, "deck"):
			var dp wire.DeckPayload
			if err := json.Unmarshal(payload, &dp); err != nil {
				return err
			}
			passing, err := deck.ParsePassing(dp.Deck)
			if err != nil {
				return err
			}
			if !layered {
				passing, err = r.addLayer(passing)
				if err != nil {
					return err
				}
				layered = true
				if err := r.sendDeck((r.seat+1)%tableSeats, passing); err != nil {
					return err
				}
				continue
			}
			opened, err := r.passingStep(from, passing)
			if err != nil {
				return err
			}
			if opened {
				return r.shareData()
			}
		case hasField(payload, "passing_data"):
			var dr dataRelay
			if err := json.Unmarshal(payload, &dr); err != nil {
				return err
			}
			r.data.Merge(dr.PassingData)
			return r.shareData()
		default:
			return fmt.Errorf("unexpected payload from seat %d during shuffle", from)
		}
	}
}

// addLayer wraps every circulating card in this seat's own encryption and
// permutes the order, so no downstream observer can track positions.
func (r *Runner) addLayer(p deck.Passing) (deck.Passing, error) {
	r.layerKey = security.RandomBytes(32)
	r.layerIV = security.RandomBytes(16)
	live := p.Live()
	for i, card := range live {
		ciphertext, err := security.EncryptAESCBC(r.layerKey, r.layerIV, []byte(card))
		if err != nil {
			return nil, err
		}
		live[i] = base64.StdEncoding.EncodeToString(ciphertext)
	}
	perm := security.Permutation(len(live))
	shuffled := make([]string, len(live))
	for i, j := range perm {
		shuffled[i] = live[j]
	}
	r.log.Info("encryption layer applied")
	return deck.NewPassing(shuffled), nil
}

func (r *Runner) passingStep(from int, p deck.Passing) (bool, error) {
	if p.Count() > 0 {
		if len(r.encrypted) < deck.HandSize && security.Chance(r.opts.PickChance) {
			offset := security.RandomInt(p.Count()) + 1
			card, err := p.Take(offset, r.placeholderFor(p[offset]))
			if err != nil {
				return false, err
			}
			r.encrypted = append(r.encrypted, card)
		}
		if len(r.encrypted) > 0 && p.Count() > 0 && security.Chance(r.opts.SwapChance) {
			offset := security.RandomInt(p.Count()) + 1
			held := security.RandomInt(len(r.encrypted))
			old, err := p.Swap(offset, r.encrypted[held])
			if err != nil {
				return false, err
			}
			r.encrypted[held] = old
		}
		if err := p.ShuffleLive(security.Permutation(p.Count())); err != nil {
			return false, err
		}
	}
	if p.Count() == 0 && security.Chance(r.opts.CommitChance) {
		r.log.Info("deck exhausted, opening commitment phase")
		return true, nil
	}
	return false, r.sendDeck(r.randomOther(from), p)
}

// placeholderFor fabricates filler indistinguishable in size from the
// card it replaces.
func (r *Runner) placeholderFor(card string) string {
	size := base64.StdEncoding.DecodedLen(len(card))
	if decoded, err := base64.StdEncoding.DecodeString(card); err == nil {
		size = len(decoded)
	}
	return base64.StdEncoding.EncodeToString(security.RandomBytes(size))
}

func (r *Runner) randomOther(sender int) int {
	for {
		to := security.RandomInt(tableSeats)
		if to != r.seat && to != sender {
			return to
		}
	}
}

func (r *Runner) sendDeck(to int, p deck.Passing) error {
	payload, err := r.c.EncryptFor(r.peerParams(to), wire.DeckPayload{Deck: p})
	if err != nil {
		return err
	}
	return r.c.Relay(r.Table.TableID, to, payload)
}

func (r *Runner) sendData(to int) error {
	payload, err := json.Marshal(dataRelay{PassingData: r.data})
	if err != nil {
		return err
	}
	return r.c.Relay(r.Table.TableID, to, payload)
}

// shareData runs the commitment and key-disclosure rings over the shared
// passing data: contribute what is due, forward to the next seat, merge
// what comes back, until both maps are complete. The final forward by a
// completed seat is what closes the ring for the others.
func (r *Runner) shareData() error {
	me := strconv.Itoa(r.seat)
	for {
		if _, ok := r.data.Commits[me]; !ok {
			r.data.Commits[me] = security.Commit(deck.Canonical(r.encrypted))
			r.log.Info("hand committed")
		}
		if len(r.data.Commits) == tableSeats {
			if _, ok := r.data.DeckKeys[me]; !ok {
				r.data.DeckKeys[me] = wire.DeckKey{Key: r.layerKey, IV: r.layerIV}
				r.log.Info("deck key disclosed")
			}
		}
		if err := r.sendData((r.seat + 1) % tableSeats); err != nil {
			return err
		}
		if len(r.data.Commits) == tableSeats && len(r.data.DeckKeys) == tableSeats {
			return nil
		}
		from, payload, err := r.nextPeer()
		if err != nil {
			return err
		}
		var dr dataRelay
		if err := json.Unmarshal(payload, &dr); err != nil || !hasField(payload, "passing_data") {
			return fmt.Errorf("unexpected payload from seat %d during data sharing", from)
		}
		r.data.Merge(dr.PassingData)
	}
}

// Validate submits the local passing data and waits for the unanimous
// verdict.
func (r *Runner) Validate() error {
	if err := r.c.ValidatePreGame(r.Table.TableID, r.data); err != nil {
		return err
	}
	for {
		update, err := r.c.NextUpdate()
		if err != nil {
			return err
		}
		if update.Update != wire.UpdateTableState {
			continue
		}
		switch update.TableState {
		case string(croupier.StateGame):
			return nil
		case string(croupier.StateAborted):
			return fmt.Errorf("pre-game validation failed, table aborted")
		}
	}
}

// DecryptHand peels the four layers in reverse order of application and
// checks every recovered card is a real one.
func (r *Runner) DecryptHand() error {
	if len(r.encrypted) != deck.HandSize {
		return fmt.Errorf("holding %d cards, want %d", len(r.encrypted), deck.HandSize)
	}
	cards := append([]string(nil), r.encrypted...)
	for seat := tableSeats - 1; seat >= 0; seat-- {
		key, ok := r.data.DeckKeys[strconv.Itoa(seat)]
		if !ok {
			return fmt.Errorf("no deck key for seat %d", seat)
		}
		for i, card := range cards {
			ciphertext, err := base64.StdEncoding.DecodeString(card)
			if err != nil {
				return fmt.Errorf("card %d is not base64 at layer %d: %w", i, seat, err)
			}
			plaintext, err := security.DecryptAESCBC(key.Key, key.IV, ciphertext)
			if err != nil {
				return fmt.Errorf("card %d does not decrypt at layer %d: %w", i, seat, err)
			}
			cards[i] = string(plaintext)
		}
	}
	for _, card := range cards {
		if !deck.Valid(card) {
			return fmt.Errorf("decryption yielded unknown card %q", card)
		}
	}
	r.Hand = deck.SortHand(cards)
	r.log.WithField("hand", r.Hand).Info("hand decrypted")
	return nil
}

// Run drives the whole pre-game sequence for a seated runner.
func (r *Runner) Run() error {
	steps := []func() error{
		r.WaitFull,
		r.AuthenticatePeers,
		r.Confirm,
		r.RunShuffle,
		r.Validate,
		r.DecryptHand,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Chooser picks which of the remaining cards to play.
type Chooser func(remaining []string) (string, error)

// PlayGame plays the hand to the end, mirroring the table referee locally
// to know when it is this seat's turn. A nil chooser plays the lowest
// remaining card. Returns the winning seats.
func (r *Runner) PlayGame(choose Chooser) ([]int, error) {
	if choose == nil {
		choose = func(remaining []string) (string, error) {
			return remaining[0], nil
		}
	}
	referee := game.NewHearts()
	remaining := append([]string(nil), r.Hand...)
	for {
		if !referee.Over() && referee.Turn() == r.seat {
			card, err := choose(remaining)
			if err != nil {
				return nil, err
			}
			kept := remaining[:0]
			for _, held := range remaining {
				if held != card {
					kept = append(kept, held)
				}
			}
			remaining = kept
			if err := r.c.Play(r.Table.TableID, card); err != nil {
				return nil, err
			}
		}
		kind, raw, err := r.c.NextGameEvent()
		if err != nil {
			return nil, err
		}
		switch kind {
		case wire.TypePlay:
			var play wire.PlayBroadcast
			if err := json.Unmarshal(raw, &play); err != nil {
				return nil, err
			}
			referee.NewPlay(play.From, play.Card)
			if referee.FullTrick() {
				referee.TrickOutcome()
			}
		case wire.TypeTrickOutcome:
			var outcome wire.TrickOutcome
			if err := json.Unmarshal(raw, &outcome); err != nil {
				return nil, err
			}
			r.log.WithFields(logrus.Fields{"winner": outcome.Player, "points": outcome.Points}).Info("trick taken")
		case wire.TypeGameOutcome:
			var outcome wire.GameOutcome
			if err := json.Unmarshal(raw, &outcome); err != nil {
				return nil, err
			}
			return outcome.Winners, nil
		}
	}
}
