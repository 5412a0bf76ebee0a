package bot

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
	ownerPrefix = "bot/"
	bootOwner   = ownerPrefix + "system"

	defaultCapitalUSD = 25000.0
)

// State is a point-in-time copy of one bot.
type State struct {
	ID         string              `json:"id"`
	Label      string              `json:"label"`
	Color      string              `json:"color"`
	Instrument string              `json:"instrument"`
	Price      float64             `json:"price"`
	Indicators indicator.Snapshot  `json:"indicators"`
	Positions  []position.Position `json:"positions"`
	PnL        float64             `json:"pnl"`
	Trades     int                 `json:"trades"`
	WinRate    float64             `json:"winRate"`
	LastSignal strategy.Direction  `json:"lastSignal"`
	Confidence float64             `json:"confidence"`
	Running    bool                `json:"running"`
}

// StartOptions narrows which bots start and what they trade. Empty fields
// mean no restriction.
type StartOptions struct {
	IDs         []string
	Instruments []string
	Venues      []string
}

// Options are the collaborators of an Engine. Zero values are replaced with
// defaults.
type Options struct {
	Clock      *sched.Scheduler
	Prices     *market.PriceTable
	Venues     *venue.Registry
	Rand       *rand.Rand
	Profiles   []Profile
	CapitalUSD float64
}

type bot struct {
	profile     Profile
	book        *position.Book
	state       State
	snapshots   map[string]indicator.Snapshot
	instruments []string
	venues      []venue.Venue
	armed       bool
	opened      int
}

// Engine runs the strategy bots on the shared virtual clock.
type Engine struct {
	logger   *slog.Logger
	clock    *sched.Scheduler
	prices   *market.PriceTable
	venues   *venue.Registry
	capital  float64
	profiles []Profile

	mu      sync.Mutex
	rng     *rand.Rand
	running bool
	bots    map[string]*bot
	seq     uint64

	logs *bus.Bus[model.LogEntry]
}

// NewEngine creates a stopped bot engine.
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
		prices = market.NewPriceTable(market.DefaultInstruments(), rand.New(rand.NewSource(rng.Int63())))
	}
	profiles := opts.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	capital := opts.CapitalUSD
	if capital <= 0 {
		capital = defaultCapitalUSD
	}
	return &Engine{
		logger:   logger,
		clock:    clock,
		prices:   prices,
		venues:   opts.Venues,
		capital:  capital,
		profiles: profiles,
		rng:      rng,
		bots:     make(map[string]*bot, len(profiles)),
		logs:     bus.New[model.LogEntry](),
	}
}

// Start arms the cycle timer of every selected bot. Bots that are already
// running are left alone.
func (e *Engine) Start(opts StartOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = true
	e.checkVenueFilter(opts.Venues)
	for _, p := range e.selectProfiles(opts.IDs) {
		b, ok := e.bots[p.ID]
		if ok && b.armed {
			continue
		}
		if !ok {
			b = e.newBot(p)
			e.bots[p.ID] = b
		}
		b.instruments = e.instrumentsFor(p, opts.Instruments)
		if len(b.instruments) == 0 {
			e.logger.Warn("Bot has no tradable instruments", "bot", p.ID)
			continue
		}
		b.venues = e.venuesFor(opts.Venues)
		b.armed = true
		b.state.Running = true
		e.arm(b, 0)
		e.logger.Info("Bot started", "bot", p.ID, "instruments", b.instruments)
	}
}

// Stop halts the given bots, or the whole engine when no ids are given.
// Every timer the halted bots still have queued is cancelled.
func (e *Engine) Stop(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(ids) == 0 {
		e.running = false
		for _, p := range e.profiles {
			if b, ok := e.bots[p.ID]; ok {
				e.halt(b)
			}
		}
		e.clock.CancelOwner(bootOwner)
		e.logger.Info("Bot engine stopped")
		return
	}
	for _, id := range ids {
		if b, ok := e.bots[id]; ok {
			e.halt(b)
		}
	}
}

// OnLog registers fn for every emitted entry.
func (e *Engine) OnLog(fn func(model.LogEntry)) func() {
	return e.logs.Subscribe(fn)
}

// State returns a copy of the bot's state.
func (e *Engine) State(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bots[id]
	if !ok {
		return State{}, false
	}
	return b.snapshot(), true
}

// States returns a copy of every bot that has been started at least once.
func (e *Engine) States() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]State, len(e.bots))
	for id, b := range e.bots {
		out[id] = b.snapshot()
	}
	return out
}

// Roster returns the profiles the engine was built with.
func (e *Engine) Roster() []Profile {
	out := make([]Profile, len(e.profiles))
	copy(out, e.profiles)
	return out
}

// IsRunning reports whether the engine has been started and not globally
// stopped.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

type bootLine struct {
	offset     time.Duration
	message    string
	importance model.Importance
}

// EmitBootSequence queues the fixed start-up banner.
func (e *Engine) EmitBootSequence() {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines := []bootLine{
		{0, "Strategy engine initializing", model.ImportanceMedium},
		{400 * time.Millisecond, fmt.Sprintf("Loaded %d strategy profiles", len(e.profiles)), model.ImportanceLow},
		{900 * time.Millisecond, "Market data feeds connected", model.ImportanceLow},
		{1400 * time.Millisecond, fmt.Sprintf("Risk manager online, max %d positions per bot", position.MaxOpen), model.ImportanceLow},
		{2000 * time.Millisecond, "All systems nominal, beginning market scan", model.ImportanceHigh},
	}
	for _, line := range lines {
		d := draft{category: model.CategorySystem, importance: line.importance, message: line.message}
		e.clock.After(bootOwner, line.offset, func() { e.emitSystem(d) })
	}
}

func (e *Engine) selectProfiles(ids []string) []Profile {
	if len(ids) == 0 {
		return e.profiles
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []Profile
	for _, p := range e.profiles {
		if wanted[p.ID] {
			out = append(out, p)
			delete(wanted, p.ID)
		}
	}
	for id := range wanted {
		e.logger.Warn("Unknown bot id", "bot", id)
	}
	return out
}

func (e *Engine) newBot(p Profile) *bot {
	winRate := 0.5 + (e.rng.Float64()*2-1)*0.1
	return &bot{
		profile:   p,
		book:      position.NewBook(winRate),
		snapshots: make(map[string]indicator.Snapshot),
		state:     State{ID: p.ID, Label: p.Label, Color: p.Color},
	}
}

func (e *Engine) instrumentsFor(p Profile, filter []string) []string {
	known := e.prices.Symbols()
	preferred := intersect(p.PreferredInstruments, known)
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
	if e.venues == nil {
		return nil
	}
	if vs := e.venues.Select(venue.KindCrypto, filter); len(vs) > 0 {
		return vs
	}
	return e.venues.Select(venue.KindCrypto, nil)
}

// arm schedules the next cycle after the given delay plus a scan interval.
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

func (e *Engine) arm(b *bot, after time.Duration) {
	id := b.profile.ID
	delay := after + uniformDuration(e.rng, b.profile.ScanIntervalMin, b.profile.ScanIntervalMax)
	e.clock.After(ownerOf(id), delay, func() { e.fire(id) })
}

func (e *Engine) fire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bots[id]
	if !ok || !e.running || !b.armed {
		return
	}
	plan := e.compose(b)
	owner := ownerOf(id)
	for _, step := range plan.Steps() {
		d := step.Value
		e.clock.After(owner, step.Offset, func() { e.emit(id, d) })
	}
	e.arm(b, plan.Span())
}

func (e *Engine) emit(id string, d draft) {
	e.mu.Lock()
	b, ok := e.bots[id]
	if !ok || !e.running || !b.armed {
		e.mu.Unlock()
		return
	}
	entry := e.entry(b.profile.ID, b.profile.Label, d)
	e.mu.Unlock()

	e.logs.Publish(entry)
}

func (e *Engine) emitSystem(d draft) {
	e.mu.Lock()
	entry := e.entry("system", "SYSTEM", d)
	e.mu.Unlock()

	e.logs.Publish(entry)
}

func (e *Engine) entry(id, label string, d draft) model.LogEntry {
	e.seq++
	return model.LogEntry{
		ID:          fmt.Sprintf("bot-%06d", e.seq),
		Timestamp:   e.clock.Now(),
		EntityID:    id,
		EntityLabel: label,
		Category:    d.category,
		Message:     d.message,
		Data:        d.data,
		Importance:  d.importance,
	}
}

func (e *Engine) halt(b *bot) {
	if !b.armed {
		return
	}
	b.armed = false
	b.state.Running = false
	cancelled := e.clock.CancelOwner(ownerOf(b.profile.ID))
	e.logger.Info("Bot stopped", "bot", b.profile.ID, "cancelled", cancelled)
}

func (b *bot) snapshot() State {
	s := b.state
	s.Positions = b.book.Positions()
	s.WinRate = b.book.WinRate()
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
