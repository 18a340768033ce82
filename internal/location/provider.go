package location

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/publicfarley/simple-weather/internal/models"
)

var (
	// ErrPermissionDenied means the user denied location access. Terminal
	// until system settings change; never retried automatically.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrPermissionRestricted means location access is restricted by policy.
	ErrPermissionRestricted = errors.New("location permission restricted")

	// ErrUnavailable is a transient fix failure (signal loss, airplane
	// mode). Retryable via explicit user action.
	ErrUnavailable = errors.New("location unavailable")
)

// AuthStatus is the platform location-authorization state.
type AuthStatus string

const (
	AuthNotDetermined     AuthStatus = "notDetermined"
	AuthDenied            AuthStatus = "denied"
	AuthRestricted        AuthStatus = "restricted"
	AuthAuthorizedLimited AuthStatus = "authorizedLimited"
	AuthAuthorizedFull    AuthStatus = "authorizedFull"
)

// Granted reports whether the status permits fix requests.
func (s AuthStatus) Granted() bool {
	return s == AuthAuthorizedLimited || s == AuthAuthorizedFull
}

// Provider yields device coordinates on request. Implementations wrap the
// platform location service; the reconciler only depends on this contract.
type Provider interface {
	// RequestFix requests a one-time coordinate fix. Blocks until a fix
	// arrives, the context expires, or the request fails.
	RequestFix(ctx context.Context) (models.Coordinate, error)

	// AuthorizationStatus returns the current authorization state.
	AuthorizationStatus() AuthStatus

	// OnAuthorizationChange registers a callback invoked whenever the
	// authorization state changes.
	OnAuthorizationChange(fn func(AuthStatus))
}

// StaticProvider is a Provider backed by a fixed coordinate, used by the
// daemon shell and tests in place of device hardware. The coordinate comes
// from DEVICE_LAT/DEVICE_LON; with neither set, fix requests fail with
// ErrUnavailable.
type StaticProvider struct {
	mu        sync.Mutex
	coord     models.Coordinate
	hasCoord  bool
	status    AuthStatus
	callbacks []func(AuthStatus)
}

// NewStaticProvider builds a StaticProvider from the environment.
func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{status: AuthAuthorizedFull}
	lat, errLat := strconv.ParseFloat(os.Getenv("DEVICE_LAT"), 64)
	lon, errLon := strconv.ParseFloat(os.Getenv("DEVICE_LON"), 64)
	if errLat == nil && errLon == nil {
		p.coord = models.Coordinate{Latitude: lat, Longitude: lon}
		p.hasCoord = true
	}
	return p
}

// RequestFix returns the configured coordinate, or ErrUnavailable when none
// is configured.
func (p *StaticProvider) RequestFix(ctx context.Context) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case AuthDenied:
		return models.Coordinate{}, ErrPermissionDenied
	case AuthRestricted:
		return models.Coordinate{}, ErrPermissionRestricted
	}
	if !p.hasCoord {
		return models.Coordinate{}, ErrUnavailable
	}
	return p.coord, nil
}

// AuthorizationStatus returns the current authorization state.
func (p *StaticProvider) AuthorizationStatus() AuthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// OnAuthorizationChange registers a callback for authorization changes.
func (p *StaticProvider) OnAuthorizationChange(fn func(AuthStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

// SetAuthorization changes the authorization state and notifies callbacks.
func (p *StaticProvider) SetAuthorization(status AuthStatus) {
	p.mu.Lock()
	p.status = status
	callbacks := append([]func(AuthStatus){}, p.callbacks...)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn(status)
	}
}

// SetCoordinate changes the coordinate returned by RequestFix.
func (p *StaticProvider) SetCoordinate(c models.Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coord = c
	p.hasCoord = true
}
