package learning

import (
	"math/rand"
	"sync"
)

const (
	defaultAlpha   = 0.1
	defaultGamma   = 0.9
	defaultEpsilon = 0.2
	epsilonDecay   = 0.995
	epsilonFloor   = 0.05
	replayCapacity = 1000
	replayBatch    = 10
	replayEvery    = 100
)

// transition is one replay-buffer entry.
type transition struct {
	state  Signature
	action string
	reward float64
	next   Signature
}

type qKey struct {
	state  Signature
	action string
}

// Selector is the tabular Q-learning agent. All methods are safe for
// concurrent use; the table, ε and replay buffer live behind one mutex.
type Selector struct {
	mu      sync.Mutex
	table   map[qKey]float64
	alpha   float64
	gamma   float64
	epsilon float64
	replay  []transition
	updates int
	rng     *rand.Rand
}

// NewSelector builds a selector with the default hyperparameters.
func NewSelector(seed int64) *Selector {
	return &Selector{
		table:   make(map[qKey]float64),
		alpha:   defaultAlpha,
		gamma:   defaultGamma,
		epsilon: defaultEpsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Epsilon returns the current exploration rate.
func (s *Selector) Epsilon() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epsilon
}

// Q returns the table value for (state, action).
func (s *Selector) Q(state Signature, action Action) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table[qKey{state, action.Key()}]
}

// Select picks an action for state: with probability ε (or when the state is
// unseen) uniformly from available, otherwise the action with the highest Q.
func (s *Selector) Select(state State, available []Action) (Action, bool) {
	if len(available) == 0 {
		return Action{}, false
	}
	sig := state.Simplify()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.epsilon {
		return available[s.rng.Intn(len(available))], true
	}

	bestIdx := -1
	bestQ := 0.0
	for i, a := range available {
		q, ok := s.table[qKey{sig, a.Key()}]
		if !ok {
			continue
		}
		if bestIdx < 0 || q > bestQ {
			bestIdx = i
			bestQ = q
		}
	}
	if bestIdx < 0 {
		return available[s.rng.Intn(len(available))], true
	}
	return available[bestIdx], true
}

// Update applies the Q-learning rule for one observed transition, decays ε,
// records the transition into the replay buffer, and every hundredth update
// replays a batch of ten.
func (s *Selector) Update(prev State, action Action, reward float64, next State) {
	prevSig := prev.Simplify()
	nextSig := next.Simplify()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.apply(prevSig, action.Key(), reward, nextSig)

	s.epsilon *= epsilonDecay
	if s.epsilon < epsilonFloor {
		s.epsilon = epsilonFloor
	}

	s.replay = append(s.replay, transition{prevSig, action.Key(), reward, nextSig})
	if len(s.replay) > replayCapacity {
		s.replay = s.replay[len(s.replay)-replayCapacity:]
	}

	s.updates++
	if s.updates%replayEvery == 0 {
		for i := 0; i < replayBatch && len(s.replay) > 0; i++ {
			t := s.replay[s.rng.Intn(len(s.replay))]
			s.apply(t.state, t.action, t.reward, t.next)
		}
	}
}

// apply is the bare update rule; the caller holds the lock.
func (s *Selector) apply(state Signature, action string, reward float64, next Signature) {
	key := qKey{state, action}
	maxNext := s.maxQ(next)
	s.table[key] += s.alpha * (reward + s.gamma*maxNext - s.table[key])
}

// maxQ scans the table for the best value reachable from state.
func (s *Selector) maxQ(state Signature) float64 {
	best := 0.0
	found := false
	for key, q := range s.table {
		if key.state != state {
			continue
		}
		if !found || q > best {
			best = q
			found = true
		}
	}
	return best
}

// Observe is the convenience wrapper the tool facade calls: it shapes the
// reward from the outcome and transition, then updates.
func (s *Selector) Observe(prev State, action Action, outcome Outcome, next State) float64 {
	r := Reward(action, outcome, prev, next)
	s.Update(prev, action, r, next)
	return r
}
