package engine

// Shuffler is the part of the random stream the scheduler needs.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// RandomActivation activates every registered agent exactly once per step,
// in an order drawn fresh from the shared stream each time.
type RandomActivation[A any] struct {
	src    Shuffler
	agents []A
}

// NewRandomActivation creates an empty scheduler drawing order from src.
func NewRandomActivation[A any](src Shuffler) *RandomActivation[A] {
	return &RandomActivation[A]{src: src}
}

// Add registers an agent. Registration order is the agent's index.
func (ra *RandomActivation[A]) Add(a A) {
	ra.agents = append(ra.agents, a)
}

// Len returns the number of registered agents.
func (ra *RandomActivation[A]) Len() int { return len(ra.agents) }

// Agents returns the agents in registration order.
func (ra *RandomActivation[A]) Agents() []A {
	out := make([]A, len(ra.agents))
	copy(out, ra.agents)
	return out
}

// Order returns a fresh permutation of agent indices.
func (ra *RandomActivation[A]) Order() []int {
	indices := make([]int, len(ra.agents))
	for i := range indices {
		indices[i] = i
	}
	ra.src.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

// Step calls activate once for every agent in shuffled order.
func (ra *RandomActivation[A]) Step(activate func(A)) {
	for _, i := range ra.Order() {
		activate(ra.agents[i])
	}
}
