package container

import (
	"math/rand/v2"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fogsim/fogsim/sim"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionZygote  Action = "zygote"   // idle private container converted to zygote
	ActionWarm    Action = "warm"     // served by an active container
	ActionFork    Action = "fork"     // helper forked from another function's zygote
	ActionCold    Action = "cold"     // new private container allocated
	ActionMiss    Action = "forkmiss" // chosen helper had no zygote; cold start followed
	ActionBalance Action = "balance"  // per-tick load balancer overhead
)

// Costs holds the base provisioning cost of each transition. The charged
// cost is base + U(VariationMin, VariationMax).
type Costs struct {
	Zygote       float64
	Fork         float64
	Warm         float64
	Cold         float64
	Balance      float64
	VariationMin float64
	VariationMax float64
}

// DefaultCosts returns the reference cost tiers; cold start is the most expensive.
func DefaultCosts() Costs {
	return Costs{
		Zygote:       0.1,
		Fork:         0.05,
		Warm:         0.02,
		Cold:         0.3,
		Balance:      0.05,
		VariationMin: 0.1,
		VariationMax: 0.3,
	}
}

// Event records one lifecycle transition and the cost it incurred.
type Event struct {
	Tick        int
	Function    string
	Action      Action
	Helper      string // helping function for fork and forkmiss
	ContainerID string
	Cost        float64
}

// Manager owns every function's container pool. Pools persist across ticks.
// Not safe for concurrent use; the tick loop is the only caller.
type Manager struct {
	pools     map[string][]*Container
	graph     *DependencyGraph
	src       rand.Source
	costs     Costs
	variation distuv.Uniform
	ledger    *Ledger
	seq       int
}

// NewManager creates a Manager drawing costs and helper choices from src.
// A nil graph means no function can help another.
func NewManager(graph *DependencyGraph, src rand.Source, costs Costs) *Manager {
	if graph == nil {
		graph = NewDependencyGraph()
	}
	return &Manager{
		pools:     make(map[string][]*Container),
		graph:     graph,
		src:       src,
		costs:     costs,
		variation: distuv.Uniform{Min: costs.VariationMin, Max: costs.VariationMax, Src: src},
		ledger:    NewLedger(),
	}
}

// AddContainer appends a container to function's pool and returns it.
func (m *Manager) AddContainer(function string, state State, idle bool) *Container {
	c := &Container{
		ID:       containerID(function, m.seq),
		Function: function,
		State:    state,
		Idle:     idle,
	}
	m.seq++
	m.pools[function] = append(m.pools[function], c)
	return c
}

// Pool returns function's containers in allocation order.
func (m *Manager) Pool(function string) []*Container {
	return m.pools[function]
}

// Functions returns every function with a pool, sorted by name.
func (m *Manager) Functions() []string {
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ledger returns the per-tick cost ledger.
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// Graph returns the dependency graph.
func (m *Manager) Graph() *DependencyGraph {
	return m.graph
}

func (m *Manager) charge(tick int, base float64) float64 {
	cost := base + m.variation.Rand()
	m.ledger.Add(tick, cost)
	return cost
}

// IdentifyIdle converts every idle private container into a zygote.
func (m *Manager) IdentifyIdle(tick int) []Event {
	var events []Event
	for _, fn := range m.Functions() {
		for _, c := range m.pools[fn] {
			if c.Idle && c.State == Private {
				c.State = Zygote
				events = append(events, Event{
					Tick: tick, Function: fn, Action: ActionZygote,
					ContainerID: c.ID, Cost: m.charge(tick, m.costs.Zygote),
				})
			}
		}
	}
	return events
}

// Invoke serves one request for function. An active container serves it
// warm. Otherwise the function is overloaded: a helper is chosen uniformly
// from the dependency graph and its first zygote forks into a Helper bound
// to function. With no helper, or a helper without a zygote, a new idle
// Private container is allocated at the cold tier.
func (m *Manager) Invoke(function string, tick int) []Event {
	for _, c := range m.pools[function] {
		if c.Active() {
			return []Event{{
				Tick: tick, Function: function, Action: ActionWarm,
				ContainerID: c.ID, Cost: m.charge(tick, m.costs.Warm),
			}}
		}
	}

	var events []Event
	if helper := m.selectHelper(function); helper != "" {
		if forked := m.fork(helper, function); forked != nil {
			return []Event{{
				Tick: tick, Function: function, Action: ActionFork, Helper: helper,
				ContainerID: forked.ID, Cost: m.charge(tick, m.costs.Fork),
			}}
		}
		logrus.Debugf("tick %d: helper %q has no zygote for %q; cold start", tick, helper, function)
		events = append(events, Event{Tick: tick, Function: function, Action: ActionMiss, Helper: helper})
	}

	c := m.AddContainer(function, Private, true)
	return append(events, Event{
		Tick: tick, Function: function, Action: ActionCold,
		ContainerID: c.ID, Cost: m.charge(tick, m.costs.Cold),
	})
}

// selectHelper picks a helper for target uniformly at random, or "" if none.
func (m *Manager) selectHelper(target string) string {
	candidates := m.graph.Helpers(target)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[sim.UniformIndex(m.src, len(candidates))]
}

// fork clones helper's first zygote into an active Helper for target.
// The zygote stays in place; nil if helper has no zygote.
func (m *Manager) fork(helper, target string) *Container {
	for _, z := range m.pools[helper] {
		if z.State != Zygote {
			continue
		}
		c := m.AddContainer(target, Helper, false)
		c.Origin = helper
		return c
	}
	return nil
}

// Balance charges the per-tick load balancer overhead.
func (m *Manager) Balance(tick int) Event {
	return Event{Tick: tick, Action: ActionBalance, Cost: m.charge(tick, m.costs.Balance)}
}

// Tick runs one lifecycle step: idle detection, the given invocations in
// order, then balancing. A nil invocation list invokes every function with a
// pool once, in name order.
func (m *Manager) Tick(tick int, invocations []string) []Event {
	events := m.IdentifyIdle(tick)
	if invocations == nil {
		invocations = m.Functions()
	}
	for _, fn := range invocations {
		events = append(events, m.Invoke(fn, tick)...)
	}
	return append(events, m.Balance(tick))
}
