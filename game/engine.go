package game

// Engine referees a trick-taking game once the deal is validated. The relay
// never sees hands, so an engine can only judge what is public: turn order,
// one-shot card plays and trick outcomes.
type Engine interface {
	// ValidPlay reports whether seat may play card right now.
	ValidPlay(seat int, card string) error

	// NewPlay records a validated play.
	NewPlay(seat int, card string)

	// FullTrick reports whether the current trick has all four cards.
	FullTrick() bool

	// TrickOutcome resolves a full trick: the winning seat and the penalty
	// points it collected. It also opens the next trick.
	TrickOutcome() (seat, points int)

	// Over reports whether all tricks have been played.
	Over() bool

	// Outcome returns the winning seats.
	Outcome() []int
}
