package session

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/reflred/internal/cache"
	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/metrics"
	"github.com/roach88/reflred/internal/stitch"
	"github.com/roach88/reflred/internal/transform"
)

// Loader produces runs from sources. Both methods fail with LOAD_ERROR;
// LoadMerge fails with UNSUPPORTED_OPERATION for fewer than two sources.
type Loader interface {
	Load(ctx context.Context, source string, cfg config.Configuration) (*ir.Run, error)
	LoadMerge(ctx context.Context, sources []string, cfg config.Configuration) (*ir.Run, error)
}

// Progress receives completion percentages (0-100) at fixed milestones.
// It is called synchronously.
type Progress func(value float64, message string)

func (p Progress) report(value float64, message string) {
	if p != nil {
		p(value, message)
	}
}

// Session is the reduction session manager. See the package documentation
// for the ownership model.
//
// INVARIANTS:
//   - reduction is sorted ascending by QMin and holds each key at most once
//   - directBeams holds each key at most once
//   - every key in reduction, directBeams and active is present in arena
//   - reductionStates is fixed by the first run added to an empty reduction list
type Session struct {
	loader     Loader
	cfg        config.Configuration
	transforms transform.Set
	stitcher   stitch.Stitcher
	journal    Journal
	metrics    *metrics.Metrics
	ids        IDGenerator
	clock      *Clock

	id        string
	name      string
	started   bool
	cacheSize int

	cache           *cache.FIFO[string, ir.RunKey]
	arena           map[ir.RunKey]*ir.Run
	reduction       []ir.RunKey
	directBeams     []ir.RunKey
	reductionStates []string
	active          ir.RunKey
	activeChannel   string
	composite       map[string]ir.Curve
}

// Option configures a Session.
type Option func(*Session)

// WithTransforms replaces the reference transforms.
func WithTransforms(t transform.Set) Option {
	return func(s *Session) {
		s.transforms = t
	}
}

// WithStitcher replaces the default SmartStitcher.
func WithStitcher(st stitch.Stitcher) Option {
	return func(s *Session) {
		s.stitcher = st
	}
}

// WithJournal appends every state change to j.
// If j can report its highest seq the session clock resumes from it.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithMetrics records cache and reduction counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithSessionIDGenerator sets the session ID source.
// Default: UUIDv7Generator. Tests use FixedGenerator.
func WithSessionIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithCacheSize overrides cfg.MaxCache.
func WithCacheSize(n int) Option {
	return func(s *Session) {
		s.cacheSize = n
	}
}

// WithName names the session in the journal.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// New creates a session that loads runs through loader. cfg supplies the
// session-wide settings: matching tolerance, merge grid, stitching and
// trimming parameters.
func New(loader Loader, cfg config.Configuration, opts ...Option) *Session {
	s := &Session{
		loader:     loader,
		cfg:        cfg,
		transforms: transform.Default(),
		stitcher:   stitch.SmartStitcher{},
		ids:        UUIDv7Generator{},
		cacheSize:  cfg.MaxCache,
		arena:      make(map[ir.RunKey]*ir.Run),
		composite:  make(map[string]ir.Curve),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize < 1 {
		s.cacheSize = cache.DefaultCapacity
	}

	s.id = s.ids.Generate()
	s.clock = NewClock()
	if src, ok := s.journal.(seqSource); ok {
		seq, err := src.MaxSeq(context.Background())
		if err != nil {
			slog.Warn("Could not resume journal clock", "error", err)
		} else {
			s.clock = NewClockAt(seq)
		}
	}

	s.cache = cache.New[string, ir.RunKey](s.cacheSize)
	s.cache.OnEvict(func(source string, key ir.RunKey) {
		s.metrics.CacheEviction()
		slog.Debug("Evicted run from cache", "source", source, "run", key)
		s.prune(key)
	})
	return s
}

// ID returns the session identifier used in the journal.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() config.Configuration {
	return s.cfg
}

// Metrics returns the attached metrics, or nil.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run returns the arena entry for key, or nil.
func (s *Session) Run(key ir.RunKey) *ir.Run {
	return s.arena[key]
}

// Active returns the active run, or nil.
func (s *Session) Active() *ir.Run {
	if s.active == "" {
		return nil
	}
	return s.arena[s.active]
}

// ActiveChannel returns the active channel of the active run, or nil.
func (s *Session) ActiveChannel() *ir.CrossSectionChannel {
	run := s.Active()
	if run == nil {
		return nil
	}
	ch, _ := run.Channel(s.activeChannel)
	return ch
}

// ActiveChannelName returns the state label of the active channel.
func (s *Session) ActiveChannelName() string {
	return s.activeChannel
}

// IsActive reports whether key is the active run.
func (s *Session) IsActive(key ir.RunKey) bool {
	return key != "" && key == s.active
}

// SetChannel activates the channel at index i in loader order. An index
// out of range falls back to the first channel and returns false.
func (s *Session) SetChannel(i int) bool {
	run := s.Active()
	if run == nil {
		return false
	}
	switch {
	case i >= 0 && i < len(run.Order):
		s.activeChannel = run.Order[i]
		return true
	case len(run.Order) == 0:
		slog.Error("Could not set active channel: no data available", "run", s.active)
	default:
		s.activeChannel = run.Order[0]
	}
	return false
}

// SetActiveFromReductionList activates the i-th run of the reduction list.
func (s *Session) SetActiveFromReductionList(i int) bool {
	if i < 0 || i >= len(s.reduction) {
		return false
	}
	s.setActive(s.reduction[i])
	return true
}

// SetActiveFromDirectBeamList activates the i-th run of the direct-beam list.
func (s *Session) SetActiveFromDirectBeamList(i int) bool {
	if i < 0 || i >= len(s.directBeams) {
		return false
	}
	s.setActive(s.directBeams[i])
	return true
}

func (s *Session) setActive(key ir.RunKey) {
	previous := s.active
	s.active = key
	s.activeChannel = ""
	s.SetChannel(0)
	if previous != "" && previous != key {
		s.prune(previous)
	}
}

// ReductionList returns the runs of the reduction list in QMin order.
func (s *Session) ReductionList() []*ir.Run {
	return s.runs(s.reduction)
}

// DirectBeamList returns the runs of the direct-beam list.
func (s *Session) DirectBeamList() []*ir.Run {
	return s.runs(s.directBeams)
}

func (s *Session) runs(keys []ir.RunKey) []*ir.Run {
	out := make([]*ir.Run, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.arena[key])
	}
	return out
}

// ReductionStates returns the state labels shared by the reduction list.
func (s *Session) ReductionStates() []string {
	return slices.Clone(s.reductionStates)
}

// FindInReductionList returns key's index in the reduction list, or -1.
func (s *Session) FindInReductionList(key ir.RunKey) int {
	return slices.Index(s.reduction, key)
}

// FindInDirectBeamList returns key's index in the direct-beam list, or -1.
func (s *Session) FindInDirectBeamList(key ir.RunKey) int {
	return slices.Index(s.directBeams, key)
}

// IsActiveDataCompatible reports whether the active run exposes exactly the
// reduction list's states. Any run is compatible with an empty list.
func (s *Session) IsActiveDataCompatible() bool {
	run := s.Active()
	if run == nil {
		return false
	}
	if len(s.reduction) == 0 {
		return true
	}
	return run.HasStates(s.reductionStates)
}

// AddActiveToReduction inserts the active run into the reduction list,
// before the first run whose QMin is at least the active run's QMin.
//
// Returns false when there is no active run, when it is already listed, or
// when its cross-sections differ from the list's states.
func (s *Session) AddActiveToReduction() bool {
	run := s.Active()
	if run == nil || slices.Contains(s.reduction, s.active) {
		return false
	}
	if !s.IsActiveDataCompatible() {
		err := ir.NewCongruencyError(s.active, run.Labels(), s.reductionStates)
		slog.Error("The data you are trying to add has different cross-sections", "run", s.active, "error", err)
		s.record(context.Background(), EventRejected, s.active, map[string]string{"error": err.Error()})
		return false
	}
	if len(s.reduction) == 0 {
		s.reductionStates = run.Labels()
	}

	qMin, _ := run.QRange()
	idx := len(s.reduction)
	for i, key := range s.reduction {
		if other, _ := s.arena[key].QRange(); qMin <= other {
			idx = i
			break
		}
	}
	s.reduction = slices.Insert(s.reduction, idx, s.active)
	s.record(context.Background(), EventAddReduction, s.active, map[string]string{"index": strconv.Itoa(idx)})
	return true
}

// AddActiveToNormalization appends the active run to the direct-beam list.
// Returns false when it is already listed.
func (s *Session) AddActiveToNormalization() bool {
	if s.Active() == nil || slices.Contains(s.directBeams, s.active) {
		return false
	}
	s.directBeams = append(s.directBeams, s.active)
	s.record(context.Background(), EventAddDirectBeam, s.active, nil)
	return true
}

// RemoveActiveFromNormalization removes the active run from the direct-beam
// list and returns its former index, or -1 when it was not listed.
func (s *Session) RemoveActiveFromNormalization() int {
	i := slices.Index(s.directBeams, s.active)
	if i < 0 {
		return -1
	}
	s.directBeams = slices.Delete(s.directBeams, i, i+1)
	s.record(context.Background(), EventRemoveDirectBeam, s.active, map[string]string{"index": strconv.Itoa(i)})
	return i
}

// ClearDirectBeamList empties the direct-beam list and clears the
// normalization of every run that pointed at one of the removed beams.
func (s *Session) ClearDirectBeamList() {
	removed := s.directBeams
	s.directBeams = nil
	for _, run := range s.arena {
		if len(run.Normalization) == 0 {
			continue
		}
		for _, key := range removed {
			if db := s.arena[key]; db != nil && db.Numbers.Equal(run.Normalization) {
				run.Normalization = nil
				break
			}
		}
	}
	for _, key := range removed {
		s.prune(key)
	}
	s.record(context.Background(), EventClearDirectBeams, "", map[string]string{"count": strconv.Itoa(len(removed))})
}

// CacheSize returns the number of cached sources.
func (s *Session) CacheSize() int {
	return s.cache.Len()
}

// ClearCache drops every cached source. Runs still referenced by a list or
// the active pointer stay in the arena.
func (s *Session) ClearCache() {
	keys := s.cache.Values()
	s.cache.Clear()
	for _, key := range keys {
		s.prune(key)
	}
}

// prune drops key from the arena unless something still refers to it.
func (s *Session) prune(key ir.RunKey) {
	if key == s.active || s.listed(key) {
		return
	}
	if slices.Contains(s.cache.Values(), key) {
		return
	}
	delete(s.arena, key)
}
