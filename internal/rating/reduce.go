package rating

// Event is one ledger entry as seen by the reductions.
// Player2ID is nil for an untracked guest opponent.
type Event struct {
	MatchID      uint
	TournamentID uint
	Player1ID    uint
	Player2ID    *uint
	Facts        Facts
}

// ScopeKey identifies a tournament-scoped rating
type ScopeKey struct {
	PlayerID     uint
	TournamentID uint
}

// ScopedState is the running state of the tournament-scoped reduction.
// Baselines holds the pre-resolved starting rating of every scope that
// may appear; missing scopes start at DefaultRating.
type ScopedState struct {
	Ratings   map[ScopeKey]int
	Stats     map[ScopeKey]Counters
	Baselines map[ScopeKey]int
}

// NewScopedState starts an empty scoped reduction
func NewScopedState(baselines map[ScopeKey]int) ScopedState {
	if baselines == nil {
		baselines = make(map[ScopeKey]int)
	}
	return ScopedState{
		Ratings:   make(map[ScopeKey]int),
		Stats:     make(map[ScopeKey]Counters),
		Baselines: baselines,
	}
}

// Current returns the running rating of a scope, falling back to its baseline
func (st ScopedState) Current(k ScopeKey) int {
	if r, ok := st.Ratings[k]; ok {
		return r
	}
	if b, ok := st.Baselines[k]; ok {
		return b
	}
	return DefaultRating
}

// ReduceScoped applies one event to the scoped state and returns the
// evaluated outcome, whose before/after values are the entry's snapshot.
func ReduceScoped(st ScopedState, ev Event) (ScopedState, Outcome) {
	k1 := ScopeKey{PlayerID: ev.Player1ID, TournamentID: ev.TournamentID}
	before1 := st.Current(k1)

	before2 := DefaultRating
	var k2 ScopeKey
	if ev.Player2ID != nil {
		k2 = ScopeKey{PlayerID: *ev.Player2ID, TournamentID: ev.TournamentID}
		before2 = st.Current(k2)
	}

	o := Evaluate(before1, before2, ev.Facts)

	st.Ratings[k1] = o.After1
	st.Stats[k1] = st.Stats[k1].Add(Contribution(o, Side1))
	if ev.Player2ID != nil {
		st.Ratings[k2] = o.After2
		st.Stats[k2] = st.Stats[k2].Add(Contribution(o, Side2))
	}
	return st, o
}

// GlobalState is the running state of the global reduction. Seeds holds each
// player's starting global rating (manual override or DefaultRating).
// When Only is non-nil, players outside it are left untouched.
type GlobalState struct {
	Ratings map[uint]int
	Stats   map[uint]Counters
	Seeds   map[uint]int
	Only    map[uint]bool
}

// NewGlobalState starts an empty global reduction
func NewGlobalState(seeds map[uint]int, only map[uint]bool) GlobalState {
	if seeds == nil {
		seeds = make(map[uint]int)
	}
	return GlobalState{
		Ratings: make(map[uint]int),
		Stats:   make(map[uint]Counters),
		Seeds:   seeds,
		Only:    only,
	}
}

// Current returns the running global rating of a player
func (st GlobalState) Current(playerID uint) int {
	if r, ok := st.Ratings[playerID]; ok {
		return r
	}
	if s, ok := st.Seeds[playerID]; ok {
		return s
	}
	return DefaultRating
}

func (st GlobalState) tracks(playerID uint) bool {
	return st.Only == nil || st.Only[playerID]
}

// ReduceGlobal folds an entry's stored effective deltas and contributions
// into the global aggregates (per-match carry-forward).
func ReduceGlobal(st GlobalState, ev Event, o Outcome) GlobalState {
	if st.tracks(ev.Player1ID) {
		st.Ratings[ev.Player1ID] = ApplyDelta(st.Current(ev.Player1ID), o.Delta1())
		st.Stats[ev.Player1ID] = st.Stats[ev.Player1ID].Add(Contribution(o, Side1))
	}
	if ev.Player2ID != nil && st.tracks(*ev.Player2ID) {
		p2 := *ev.Player2ID
		st.Ratings[p2] = ApplyDelta(st.Current(p2), o.Delta2())
		st.Stats[p2] = st.Stats[p2].Add(Contribution(o, Side2))
	}
	return st
}
