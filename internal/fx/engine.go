package fx

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"botfeed/internal/bus"
	"botfeed/internal/indicator"
	"botfeed/internal/market"
	"botfeed/internal/model"
	"botfeed/internal/position"
	"botfeed/internal/sched"
	"botfeed/internal/strategy"
	"botfeed/internal/venue"
)

const (
	ownerPrefix = "fx/"
	bootOwner   = ownerPrefix + "system"
)

// State is a point-in-time copy of one FX agent.
type State struct {
	ID         string              `json:"id"`
	Label      string              `json:"label"`
	Color      string              `json:"color"`
	Pair       string              `json:"pair"`
	Rate       float64             `json:"rate"`
	Indicators indicator.Snapshot  `json:"indicators"`
	Positions  []position.Position `json:"positions"`
	PnL        float64             `json:"pnl"`
	Volume     float64             `json:"volume"`
	Trades     int                 `json:"trades"`
	WinRate    float64             `json:"winRate"`
	LastSignal strategy.Direction  `json:"lastSignal"`
	Confidence float64             `json:"confidence"`
	Running    bool                `json:"running"`
}

// StartOptions narrows which agents start and what they quote. Empty fields
// mean no restriction.
type StartOptions struct {
	IDs         []string
	Instruments []string
	Venues      []string
}

// Options are the collaborators of an Engine. Zero values are replaced with
// defaults; a nil Ledger disables pool transactions.
type Options struct {
	Clock  *sched.Scheduler
	Prices *market.PriceTable
	Venues *venue.Registry
	Rand   *rand.Rand
	Agents []Agent
	Ledger LedgerTransactionFactory
}

type agent struct {
	profile   Agent
	book      *position.Book
	state     State
	snapshots map[string]indicator.Snapshot
	pairs     []string
	venues    []venue.Venue
	armed     bool
	opened    int
}

// Engine runs the FX desks' RFQ workflow on the shared virtual clock.
type Engine struct {
	logger  *slog.Logger
	clock   *sched.Scheduler
	prices  *market.PriceTable
	venues  *venue.Registry
	agents  []Agent
	bridged bool
	bridge  *Bridge

	mu      sync.Mutex
	rng     *rand.Rand
	running bool
	desks   map[string]*agent
	seq     uint64

	logs *bus.Bus[model.LogEntry]
	pool *bus.Bus[model.PoolTransaction]
}

// NewEngine creates a stopped FX engine.
func NewEngine(logger *slog.Logger, opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	clock := opts.Clock
	if clock == nil {
		clock = sched.New(time.Now())
	}
	prices := opts.Prices
	if prices == nil {
		prices = market.NewPriceTable(market.DefaultPairs(), rand.New(rand.NewSource(rng.Int63())))
	}
	agents := opts.Agents
	if len(agents) == 0 {
		agents = DefaultAgents()
	}
	return &Engine{
		logger:  logger,
		clock:   clock,
		prices:  prices,
		venues:  opts.Venues,
		agents:  agents,
		bridged: opts.Ledger != nil,
		bridge:  NewBridge(opts.Ledger, rng),
		rng:     rng,
		desks:   make(map[string]*agent, len(agents)),
		logs:    bus.New[model.LogEntry](),
		pool:    bus.New[model.PoolTransaction](),
	}
}

// Start arms the cycle timer of every selected agent. Agents that are
// already running are left alone.
func (e *Engine) Start(opts StartOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = true
	e.checkVenueFilter(opts.Venues)
	for _, a := range e.selectAgents(opts.IDs) {
		d, ok := e.desks[a.ID]
		if ok && d.armed {
			continue
		}
		if !ok {
			d = e.newAgent(a)
			e.desks[a.ID] = d
		}
		d.pairs = e.pairsFor(a, opts.Instruments)
		if len(d.pairs) == 0 {
			e.logger.Warn("FX agent has no quotable pairs", "agent", a.ID)
			continue
		}
		d.venues = e.venuesFor(opts.Venues)
		d.armed = true
		d.state.Running = true
		e.arm(d, 0)
		e.logger.Info("FX agent started", "agent", a.ID, "pairs", d.pairs)
	}
}

// Stop halts the given agents, or the whole engine when no ids are given.
// Every timer the halted agents still have queued is cancelled.
func (e *Engine) Stop(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(ids) == 0 {
		e.running = false
		for _, a := range e.agents {
			if d, ok := e.desks[a.ID]; ok {
				e.halt(d)
			}
		}
		e.clock.CancelOwner(bootOwner)
		e.logger.Info("FX engine stopped")
		return
	}
	for _, id := range ids {
		if d, ok := e.desks[id]; ok {
			e.halt(d)
		}
	}
}

// OnLog registers fn for every emitted entry.
func (e *Engine) OnLog(fn func(model.LogEntry)) func() {
	return e.logs.Subscribe(fn)
}

// OnPoolTransaction registers fn for every ledger transaction the bridge
// produces.
func (e *Engine) OnPoolTransaction(fn func(model.PoolTransaction)) func() {
	return e.pool.Subscribe(fn)
}

// State returns a copy of the agent's state.
func (e *Engine) State(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.desks[id]
	if !ok {
		return State{}, false
	}
	return d.snapshot(), true
}

// States returns a copy of every agent that has been started at least once.
func (e *Engine) States() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]State, len(e.desks))
	for id, d := range e.desks {
		out[id] = d.snapshot()
	}
	return out
}

// Roster returns the agents the engine was built with.
func (e *Engine) Roster() []Agent {
	out := make([]Agent, len(e.agents))
	copy(out, e.agents)
	return out
}

// IsRunning reports whether the engine has been started and not globally
// stopped.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// EmitBootSequence queues the fixed start-up banner.
func (e *Engine) EmitBootSequence() {
	e.mu.Lock()
	defer e.mu.Unlock()

	venues := 0
	if e.venues != nil {
		venues = len(e.venues.Select(venue.KindFX, nil))
	}
	ledger := "Pool ledger bridge attached"
	if !e.bridged {
		ledger = "Pool ledger bridge not configured"
	}
	lines := []struct {
		offset     time.Duration
		message    string
		importance model.Importance
	}{
		{0, "FX settlement engine initializing", model.ImportanceMedium},
		{500 * time.Millisecond, fmt.Sprintf("Connected to %d liquidity venues", venues), model.ImportanceLow},
		{1100 * time.Millisecond, "PvP settlement rails online", model.ImportanceLow},
		{1600 * time.Millisecond, ledger, model.ImportanceLow},
		{2200 * time.Millisecond, "Ready for RFQ flow", model.ImportanceHigh},
	}
	for _, line := range lines {
		d := draft{category: model.CategorySystem, importance: line.importance, message: line.message}
		e.clock.After(bootOwner, line.offset, func() { e.emitSystem(d) })
	}
}

func (e *Engine) selectAgents(ids []string) []Agent {
	if len(ids) == 0 {
		return e.agents
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []Agent
	for _, a := range e.agents {
		if wanted[a.ID] {
			out = append(out, a)
			delete(wanted, a.ID)
		}
	}
	for id := range wanted {
		e.logger.Warn("Unknown FX agent id", "agent", id)
	}
	return out
}

func (e *Engine) newAgent(a Agent) *agent {
	winRate := 0.55 + (e.rng.Float64()*2-1)*0.1
	return &agent{
		profile:   a,
		book:      position.NewBook(winRate),
		snapshots: make(map[string]indicator.Snapshot),
		state:     State{ID: a.ID, Label: a.Label, Color: a.Color},
	}
}

func (e *Engine) pairsFor(a Agent, filter []string) []string {
	known := e.prices.Symbols()
	preferred := intersect(a.PreferredPairs, known)
	if len(filter) > 0 {
		if narrowed := intersect(preferred, filter); len(narrowed) > 0 {
			return narrowed
		}
		return intersect(filter, known)
	}
	if len(preferred) == 0 {
		return known
	}
	return preferred
}

func (e *Engine) venuesFor(filter []string) []venue.Venue {
	otc := []venue.Venue{{Name: "otc", Label: "OTC", Kind: venue.KindFX}}
	if e.venues == nil {
		return otc
	}
	if vs := e.venues.Select(venue.KindFX, filter); len(vs) > 0 {
		return vs
	}
	if vs := e.venues.Select(venue.KindFX, nil); len(vs) > 0 {
		return vs
	}
	return otc
}

func (e *Engine) checkVenueFilter(filter []string) {
	if e.venues == nil {
		return
	}
	for _, name := range filter {
		if _, ok := e.venues.Get(name); !ok {
			e.logger.Warn("Unknown venue in filter", "venue", name)
		}
	}
}

func (e *Engine) arm(d *agent, after time.Duration) {
	id := d.profile.ID
	delay := after + uniformDuration(e.rng, d.profile.ScanIntervalMin, d.profile.ScanIntervalMax)
	e.clock.After(ownerOf(id), delay, func() { e.fire(id) })
}

func (e *Engine) fire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.desks[id]
	if !ok || !e.running || !d.armed {
		return
	}
	plan := e.compose(d)
	owner := ownerOf(id)
	for _, step := range plan.Steps() {
		dr := step.Value
		e.clock.After(owner, step.Offset, func() { e.emit(id, dr) })
	}
	e.arm(d, plan.Span())
}

// emit publishes the entry and, for settlement-class entries, the pool
// transaction the bridge produced for it.
func (e *Engine) emit(id string, dr draft) {
	e.mu.Lock()
	d, ok := e.desks[id]
	if !ok || !e.running || !d.armed {
		e.mu.Unlock()
		return
	}
	entry := e.entry(d.profile.ID, d.profile.Label, dr)
	tx, bridged := e.bridge.Handle(entry)
	e.mu.Unlock()

	e.logs.Publish(entry)
	if bridged {
		e.pool.Publish(tx)
	}
}

func (e *Engine) emitSystem(dr draft) {
	e.mu.Lock()
	entry := e.entry("system", "SYSTEM", dr)
	e.mu.Unlock()

	e.logs.Publish(entry)
}

func (e *Engine) entry(id, label string, dr draft) model.LogEntry {
	e.seq++
	return model.LogEntry{
		ID:          fmt.Sprintf("fx-%06d", e.seq),
		Timestamp:   e.clock.Now(),
		EntityID:    id,
		EntityLabel: label,
		Category:    dr.category,
		Message:     dr.message,
		Data:        dr.data,
		Importance:  dr.importance,
	}
}

func (e *Engine) halt(d *agent) {
	if !d.armed {
		return
	}
	d.armed = false
	d.state.Running = false
	cancelled := e.clock.CancelOwner(ownerOf(d.profile.ID))
	e.logger.Info("FX agent stopped", "agent", d.profile.ID, "cancelled", cancelled)
}

func (d *agent) snapshot() State {
	s := d.state
	s.Positions = d.book.Positions()
	s.WinRate = d.book.WinRate()
	return s
}

func ownerOf(id string) string {
	return ownerPrefix + id
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func uniformDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}
