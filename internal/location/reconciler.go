package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
)

// Phase is the reconciler's position in its state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseUsingCached Phase = "usingCached"
	PhaseAwaitingFix Phase = "awaitingFix"
	PhaseLive        Phase = "live"
	PhaseFailed      Phase = "failed"
)

// State is the observable location state exposed to the UI layer.
type State struct {
	Phase                Phase                    `json:"phase"`
	Location             *models.ResolvedLocation `json:"location,omitempty"`
	IsLoading            bool                     `json:"isLoading"`
	Err                  error                    `json:"-"`
	DidUseCachedLocation bool                     `json:"didUseCachedLocation"`
}

// Reconciler produces the single authoritative "current location" value,
// bridging the instantly-available cached coordinate with the slower live
// fix. It exposes exactly zero or one ResolvedLocation at a time.
//
// Start resolves the cached state synchronously; callers issue the live fix
// via RequestFix, typically in a goroutine, so the cached value is published
// with zero wait.
type Reconciler struct {
	provider          Provider
	cache             *Cache
	logger            *zap.Logger
	supersedeDistance float64
	fixTimeout        time.Duration

	mu           sync.Mutex
	phase        Phase
	current      *models.ResolvedLocation
	didUseCached bool
	loading      bool
	err          error
	onLocation   func(*models.Coordinate)

	baseCtx context.Context

	now func() time.Time
}

// NewReconciler wires a reconciler to its collaborators. supersedeDistance
// is the meters below which a live fix is treated as GPS noise while in the
// cached state; fixTimeout bounds how long a fix request may block.
func NewReconciler(provider Provider, cache *Cache, supersedeDistance float64, fixTimeout time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		provider:          provider,
		cache:             cache,
		logger:            logger,
		supersedeDistance: supersedeDistance,
		fixTimeout:        fixTimeout,
		phase:             PhaseIdle,
		now:               time.Now,
	}
}

// OnLocationChange registers fn to observe the published coordinate: it
// receives the coordinate each time one is published and nil when the
// published location is cleared. A suppressed fix keeps the current value
// and does not notify. Register before Start.
func (r *Reconciler) OnLocationChange(fn func(*models.Coordinate)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLocation = fn
}

// notifyLocation invokes the observer outside the state lock.
func (r *Reconciler) notifyLocation(coord *models.Coordinate) {
	r.mu.Lock()
	fn := r.onLocation
	r.mu.Unlock()
	if fn != nil {
		fn(coord)
	}
}

// Start resolves startup state from the cache: on a hit the cached
// coordinate is published immediately; on a miss the reconciler enters
// AwaitingFix. Authorization changes from the provider are wired up here.
// Start does not block on a live fix.
func (r *Reconciler) Start(ctx context.Context) {
	r.baseCtx = ctx

	if coord, ok := r.cache.Retrieve(ctx); ok {
		capturedAt := r.now()
		r.mu.Lock()
		r.phase = PhaseUsingCached
		r.didUseCached = true
		r.current = &models.ResolvedLocation{
			Coordinate: coord,
			Source:     models.SourceCached,
			CapturedAt: capturedAt,
		}
		r.mu.Unlock()
		r.logger.Info("published cached location", zap.String("key", coord.Key()))
		r.notifyLocation(&coord)
	} else {
		r.mu.Lock()
		r.phase = PhaseAwaitingFix
		r.loading = true
		r.mu.Unlock()
	}

	r.provider.OnAuthorizationChange(func(status AuthStatus) {
		r.SetAuthorization(status)
		if status.Granted() {
			go func() { _ = r.RequestFix(r.baseCtx) }()
		}
	})
}

// RequestFix requests a live fix and reconciles the result into the
// published state. The wait is bounded by the configured fix timeout.
func (r *Reconciler) RequestFix(ctx context.Context) error {
	switch r.provider.AuthorizationStatus() {
	case AuthDenied:
		r.failAuthorization(ctx, ErrPermissionDenied)
		return ErrPermissionDenied
	case AuthRestricted:
		r.failAuthorization(ctx, ErrPermissionRestricted)
		return ErrPermissionRestricted
	}

	r.mu.Lock()
	if r.phase == PhaseIdle || r.phase == PhaseFailed {
		r.phase = PhaseAwaitingFix
		r.err = nil
	}
	r.loading = true
	r.mu.Unlock()

	fixCtx, cancel := context.WithTimeout(ctx, r.fixTimeout)
	defer cancel()

	coord, err := r.provider.RequestFix(fixCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			observability.LocationFixesTotal.WithLabelValues("timeout").Inc()
			err = ErrUnavailable
		} else {
			observability.LocationFixesTotal.WithLabelValues("failure").Inc()
		}
		r.recordFixFailure(err)
		return err
	}

	r.resolveFix(ctx, coord)
	return nil
}

// resolveFix merges a successful live fix into the published state.
func (r *Reconciler) resolveFix(ctx context.Context, coord models.Coordinate) {
	capturedAt := r.now()

	r.mu.Lock()
	if r.phase == PhaseUsingCached && r.current != nil {
		if r.current.Coordinate.DistanceMeters(coord) < r.supersedeDistance {
			// GPS jitter around the cached coordinate; keep the cached value
			// so downstream weather state does not churn.
			r.loading = false
			r.err = nil
			r.mu.Unlock()
			observability.LocationFixesTotal.WithLabelValues("suppressed").Inc()
			r.logger.Debug("live fix suppressed as noise",
				zap.String("cached", r.current.Coordinate.Key()),
				zap.String("fix", coord.Key()))
			return
		}
	}

	r.phase = PhaseLive
	r.didUseCached = false
	r.loading = false
	r.err = nil
	r.current = &models.ResolvedLocation{
		Coordinate: coord,
		Source:     models.SourceLive,
		CapturedAt: capturedAt,
	}
	r.mu.Unlock()

	observability.LocationFixesTotal.WithLabelValues("success").Inc()
	r.logger.Info("published live location", zap.String("key", coord.Key()))
	r.notifyLocation(&coord)
	r.cache.Store(ctx, coord)
}

// recordFixFailure surfaces a fix failure. With a location already
// published the value is kept and the error rides alongside it; with
// nothing published the reconciler enters Failed.
func (r *Reconciler) recordFixFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loading = false
	r.err = err
	if r.current == nil {
		r.phase = PhaseFailed
	}
	r.logger.Warn("live fix failed", zap.Error(err), zap.String("phase", string(r.phase)))
}

// SetAuthorization applies an authorization change. Denial and restriction
// clear the published location and the durable slot; a grant re-enters
// AwaitingFix (callers then issue a fix request).
func (r *Reconciler) SetAuthorization(status AuthStatus) {
	switch status {
	case AuthDenied:
		r.failAuthorization(r.authCtx(), ErrPermissionDenied)
	case AuthRestricted:
		r.failAuthorization(r.authCtx(), ErrPermissionRestricted)
	case AuthAuthorizedLimited, AuthAuthorizedFull:
		r.mu.Lock()
		r.phase = PhaseAwaitingFix
		r.loading = true
		r.err = nil
		r.mu.Unlock()
		r.logger.Info("location authorization granted", zap.String("status", string(status)))
	}
}

func (r *Reconciler) authCtx() context.Context {
	if r.baseCtx != nil {
		return r.baseCtx
	}
	return context.Background()
}

func (r *Reconciler) failAuthorization(ctx context.Context, err error) {
	r.mu.Lock()
	r.phase = PhaseFailed
	r.current = nil
	r.didUseCached = false
	r.loading = false
	r.err = err
	r.mu.Unlock()

	r.logger.Info("location authorization withdrawn", zap.Error(err))
	r.notifyLocation(nil)
	r.cache.Clear(ctx)
}

// State returns a copy of the observable location state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := State{
		Phase:                r.phase,
		IsLoading:            r.loading,
		Err:                  r.err,
		DidUseCachedLocation: r.didUseCached,
	}
	if r.current != nil {
		loc := *r.current
		s.Location = &loc
	}
	return s
}

// Current returns the published coordinate, ok=false when none exists.
func (r *Reconciler) Current() (models.Coordinate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return models.Coordinate{}, false
	}
	return r.current.Coordinate, true
}
