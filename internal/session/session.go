// Package session owns the per-user sync state: the active views, their subscriptions,
// pending optimistic writes and reaction counts. All of it is mutated on one event loop.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/notify"
	"github.com/sjnosa/connect/internal/optimistic"
	"github.com/sjnosa/connect/internal/realtime"
	"github.com/sjnosa/connect/internal/reconcile"
)

// Options tune a Session.
type Options struct {
	EchoWindow        time.Duration
	RollbackReactions bool
	BannerTTL         time.Duration
	FeedLimit         int64
	Location          *time.Location
	Logger            *slog.Logger
	Now               func() time.Time
}

func (o *Options) withDefaults() {
	if o.EchoWindow <= 0 {
		o.EchoWindow = reconcile.DefaultEchoWindow
	}
	if o.FeedLimit <= 0 {
		o.FeedLimit = 50
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Session is the sync context of one signed-in user.
type Session struct {
	userID  string
	email   string
	backend Backend
	hub     *realtime.Hub
	banner  *notify.Banner
	notify  *notify.Dispatcher
	opts    Options
	logger  *slog.Logger
	valid   *validator.Validate

	// owned by the loop
	tracker      *optimistic.Tracker
	reactions    *optimistic.Reactions
	conversation *slot
	feed         *slot
	comments     *slot
	likeWrites   map[string][]bool
	ownEchoes    map[string]int
	resyncs      map[string]*resync

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	quit   chan struct{}
	done   chan struct{}
}

func newSession(userID, email string, backend Backend, transport realtime.Transport, alerter notify.PlatformAlerter, opts Options) *Session {
	opts.withDefaults()
	logger := opts.Logger.With("user_id", userID)
	hub := realtime.NewHub(transport, logger)
	banner := notify.NewBanner(opts.BannerTTL)

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:       userID,
		email:        email,
		backend:      backend,
		hub:          hub,
		banner:       banner,
		notify:       notify.NewDispatcher(hub, banner, alerter, logger),
		opts:         opts,
		logger:       logger,
		valid:        validator.New(),
		tracker:      optimistic.NewTracker(),
		reactions:    optimistic.NewReactions(),
		conversation: newSlot(models.ScopeConversation),
		feed:         newSlot(models.ScopeFeed),
		comments:     newSlot(models.ScopeComments),
		likeWrites:   make(map[string][]bool),
		ownEchoes:    make(map[string]int),
		resyncs:      make(map[string]*resync),
		ctx:          ctx,
		cancel:       cancel,
		tasks:        make(chan func(), 64),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// start runs the event loop and the notification dispatcher.
func (s *Session) start() {
	go s.run()
	if err := s.notify.Start(s.ctx); err != nil {
		s.logger.Warn("notification dispatcher unavailable", "error", err)
	}
	s.logger.Info("session started")
}

// stop tears the session down. Pending writes are abandoned.
func (s *Session) stop() {
	s.notify.Stop()
	s.cancel()
	close(s.quit)
	<-s.done
	s.hub.Close()
	s.logger.Info("session stopped", "abandoned_writes", s.tracker.Len())
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Email() string { return s.email }

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.quit:
			return
		}
	}
}

// post queues fn on the loop. It reports false once the session is stopped.
func (s *Session) post(fn func()) bool {
	select {
	case s.tasks <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() { fn(); close(finished) }) {
		return ErrNoSession
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrNoSession
	}
}

func (s *Session) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrNoSession
	}
}

// binding is one subscription feeding a view.
type binding struct {
	scope  models.Scope
	filter realtime.Filter
}

type loader func(ctx context.Context) ([]models.Record, error)

// slot is one view position. Each activation bumps gen; results carrying an older
// generation are discarded.
type slot struct {
	kind    models.ScopeKind
	scope   models.Scope
	active  bool
	gen     uint64
	subs    []*realtime.Subscription
	load    loader
	records []models.Record
	index   map[string]int
	ready   chan struct{}
	err     *ViewError
}

func newSlot(kind models.ScopeKind) *slot {
	return &slot{kind: kind, index: make(map[string]int)}
}

func (v *slot) current(gen uint64) bool {
	return v.active && v.gen == gen
}

// upsert adds rec to the confirmed set. It reports false when rec is already present.
func (v *slot) upsert(rec models.Record) bool {
	if rec.ID == "" {
		return false
	}
	if _, ok := v.index[rec.ID]; ok {
		return false
	}
	rec.Pending = false
	v.index[rec.ID] = len(v.records)
	v.records = append(v.records, rec)
	return true
}

// replace installs a fresh read, keeping pushed records the read did not include.
func (v *slot) replace(fresh []models.Record) {
	old := v.records
	v.records = nil
	v.index = make(map[string]int, len(fresh)+len(old))
	for _, r := range fresh {
		v.upsert(r)
	}
	for _, r := range old {
		v.upsert(r)
	}
}

func (v *slot) find(id string) (*models.Record, bool) {
	i, ok := v.index[id]
	if !ok {
		return nil, false
	}
	return &v.records[i], true
}

// stale reports whether any subscription of the view may have missed changes.
func (v *slot) stale() (string, bool) {
	if len(v.subs) == 0 {
		return realtime.StateClosed.String(), false
	}
	state, gap := v.subs[0].State()
	for _, sub := range v.subs[1:] {
		if _, g := sub.State(); g {
			gap = true
		}
	}
	return state.String(), gap
}

// activate points the slot at scope. Activating the scope already shown is a no-op.
// Must run on the loop.
func (s *Session) activate(v *slot, bindings []binding, load loader) (<-chan struct{}, error) {
	scope := bindings[0].scope
	if v.active && v.scope == scope {
		return v.ready, nil
	}
	s.deactivate(v)

	v.gen++
	v.scope = scope
	v.active = true
	v.load = load
	v.records = nil
	v.index = make(map[string]int)
	v.err = nil
	v.ready = make(chan struct{})

	for _, b := range bindings {
		sub, err := s.hub.Subscribe(s.ctx, b.scope, b.filter)
		if err != nil {
			s.deactivate(v)
			return nil, err
		}
		v.subs = append(v.subs, sub)
		go s.pump(v, v.gen, sub)
	}
	s.fetch(v, v.gen, v.ready)
	return v.ready, nil
}

// deactivate closes the slot's subscriptions and drops its pending writes.
// Must run on the loop.
func (s *Session) deactivate(v *slot) {
	if !v.active {
		return
	}
	for _, sub := range v.subs {
		sub.Close()
	}
	v.subs = nil
	if v == s.feed {
		s.forgetReactions(v.records)
	}
	if n := s.tracker.Discard(v.scope); n > 0 {
		metrics.OptimisticWrites.WithLabelValues(string(v.kind), "discarded").Add(float64(n))
	}
	v.active = false
	v.gen++
	v.records = nil
	v.index = make(map[string]int)
	v.err = nil
}

// pump forwards a subscription's changes to the loop.
func (s *Session) pump(v *slot, gen uint64, sub *realtime.Subscription) {
	for c := range sub.Events() {
		if !s.post(func() { s.onChange(v, gen, c) }) {
			return
		}
	}
}

func (s *Session) onChange(v *slot, gen uint64, c realtime.Change) {
	if !v.current(gen) {
		metrics.StaleResults.WithLabelValues(string(v.kind)).Inc()
		return
	}
	switch c.Table {
	case realtime.TableFeedLikes:
		s.applyRemoteReaction(c)
	case realtime.TableFeedComments:
		if v.upsert(c.Record) {
			s.bumpCommentCount(c.Record.Scope.Key)
		} else {
			metrics.EchoesSuppressed.WithLabelValues(string(v.kind)).Inc()
		}
	case realtime.TableFeedPosts:
		if v.upsert(c.Record) {
			s.reactions.Seed(c.Record.ID, c.Record.LikesCount, s.userID, false)
			s.requestResync(c.Record.ID)
		} else {
			metrics.EchoesSuppressed.WithLabelValues(string(v.kind)).Inc()
		}
	default:
		if !v.upsert(c.Record) {
			metrics.EchoesSuppressed.WithLabelValues(string(v.kind)).Inc()
		}
	}
}

// fetch reads the slot's records off the loop and installs them if the slot has not moved on.
// done is closed either way.
func (s *Session) fetch(v *slot, gen uint64, done chan struct{}) {
	load := v.load
	go func() {
		records, err := load(s.ctx)
		s.post(func() {
			defer close(done)
			if !v.current(gen) {
				metrics.StaleResults.WithLabelValues(string(v.kind)).Inc()
				return
			}
			if err != nil {
				s.logger.Warn("view load failed", "scope", v.scope.String(), "error", err)
				v.err = newViewError("", err)
				return
			}
			v.replace(records)
			if v == s.feed {
				s.seedReactions(records)
			}
		})
	}()
}

// refresh re-reads an active view and clears its missed-changes flag.
func (s *Session) refresh(ctx context.Context, v *slot) error {
	var done chan struct{}
	var err error
	if e := s.do(ctx, func() {
		if !v.active {
			err = ErrScopeInactive
			return
		}
		for _, sub := range v.subs {
			sub.AckGap()
		}
		done = make(chan struct{})
		s.fetch(v, v.gen, done)
	}); e != nil {
		return e
	}
	if err != nil {
		return err
	}
	return s.wait(ctx, done)
}

func (s *Session) close(ctx context.Context, v *slot) error {
	return s.do(ctx, func() { s.deactivate(v) })
}

func (s *Session) threadSnapshot(v *slot) ThreadSnapshot {
	snap := ThreadSnapshot{Scope: v.scope, Error: v.err}
	snap.State, snap.Stale = v.stale()
	snap.Records = reconcile.Merge(v.records, s.tracker.Pending(v.scope), reconcile.Options{
		Scope:      v.scope,
		EchoWindow: s.opts.EchoWindow,
		Promoted:   s.tracker.Promoted(v.scope),
	})
	now := s.opts.Now().In(s.opts.Location)
	for _, g := range reconcile.Group(snap.Records, s.opts.Location) {
		snap.Days = append(snap.Days, Day{Label: reconcile.DayLabel(g.Date, now), DayGroup: g})
	}
	return snap
}

// validate checks an outbound draft against its request struct.
func (s *Session) validate(draft any) error {
	if err := s.valid.Struct(draft); err != nil {
		return &draftError{err: err}
	}
	return nil
}

type draftError struct{ err error }

func (e *draftError) Error() string { return ErrInvalidDraft.Error() + ": " + e.err.Error() }

func (e *draftError) Is(target error) bool { return target == ErrInvalidDraft }

func (e *draftError) Unwrap() error { return e.err }

// Notifications returns the banner items currently visible.
func (s *Session) Notifications() []models.NotificationItem {
	return s.banner.Visible()
}

// DismissNotification hides a banner item before it expires.
func (s *Session) DismissNotification(id string) bool {
	return s.banner.Dismiss(id)
}

// PlatformAlerts reports whether platform alerts were granted.
func (s *Session) PlatformAlerts() bool {
	return s.notify.Permitted()
}

// NextEvent returns the next school event after now.
func (s *Session) NextEvent(ctx context.Context) (*models.SchoolEvent, error) {
	return s.backend.NextEvent(ctx, s.opts.Now())
}
