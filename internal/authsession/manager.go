package authsession

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"panny/internal/api"
)

// State of the auth session.
type State int

const (
	// StateUnknown is the initial state, before the first resolution.
	StateUnknown State = iota
	// StateAuthenticated means a verified or soft-trusted identity is held.
	StateAuthenticated
	// StateUnauthenticated means no identity is held.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const (
	// SignupCooldown is the client-side retry lockout after a 429.
	SignupCooldown = 60 * time.Second
	// activityThrottle is the minimum interval between lastActiveAt writes.
	activityThrottle = 15 * time.Second

	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// Manager resolves and mutates the auth session state.
type Manager struct {
	client  *api.Client
	records *RecordStore
	log     *zap.Logger
	now     func() time.Time

	// In-memory mirror of persisted signup cooldowns.
	cooldowns *gocache.Cache

	mu        sync.Mutex
	state     State
	identity  *api.Identity
	soft      bool
	lastTouch time.Time
}

// NewManager instantiates a manager in the unknown state.
func NewManager(client *api.Client, records *RecordStore, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		client:    client,
		records:   records,
		log:       log,
		now:       time.Now,
		cooldowns: gocache.New(SignupCooldown, time.Minute),
		state:     StateUnknown,
	}
}

// State returns the current state and identity, if any.
func (m *Manager) State() (State, *api.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.identity
}

// SoftAuthenticated reports whether the current identity is an unverified
// persisted fallback rather than a fresh remote confirmation.
func (m *Manager) SoftAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.soft
}

// Token implements api.TokenSource over the current identity and the
// persisted token artifacts.
func (m *Manager) Token() string {
	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()
	if identity != nil && identity.AccessToken != "" {
		return identity.AccessToken
	}
	token, err := m.records.Token(accessTokenKey)
	if err != nil {
		return ""
	}
	return token
}

// Resolve queries the remote identity endpoint and settles the state.
// An explicit 401 purges the persisted record; any other failure falls back
// to a non-expired persisted record as a soft, unverified identity.
func (m *Manager) Resolve(ctx context.Context) State {
	identity, err := m.client.FetchIdentity(ctx)
	switch {
	case err == nil && identity != nil:
		if saveErr := m.records.Save(identity); saveErr != nil {
			m.log.Warn("persisting identity failed", zap.Error(saveErr))
		}
		m.persistTokens(identity)
		m.setState(StateAuthenticated, identity, false)

	case err == nil:
		// Server answered, but with no identity.
		m.purgeRecord()
		m.setState(StateUnauthenticated, nil, false)

	case api.IsUnauthenticated(err):
		m.purgeRecord()
		m.setState(StateUnauthenticated, nil, false)

	default:
		record, ok, loadErr := m.records.Load()
		if loadErr != nil {
			m.log.Warn("loading persisted record failed", zap.Error(loadErr))
		}
		if ok && !record.Expired(m.now()) {
			m.log.Info("remote identity probe failed, trusting persisted record",
				zap.Error(err), zap.String("user_id", record.Identity.UserID))
			m.setState(StateAuthenticated, record.Identity, true)
			break
		}
		m.purgeRecord()
		m.setState(StateUnauthenticated, nil, false)
	}

	state, _ := m.State()
	return state
}

// Login authenticates with the remote service and adopts the identity.
// State is unchanged on failure.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	identity, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.adopt(identity)
	return identity, nil
}

// Signup creates an account and adopts the identity. A persisted per-email
// cooldown blocks attempts after a rate-limited response; validation
// failures never reach the network.
func (m *Manager) Signup(ctx context.Context, params api.SignupParams) (*api.Identity, error) {
	params.Email = strings.TrimSpace(params.Email)
	switch {
	case params.Email == "":
		return nil, errors.New("email is required")
	case params.Password == "":
		return nil, errors.New("password is required")
	case len(params.Password) < 6:
		return nil, errors.New("password must be at least 6 characters")
	}

	if until, ok := m.cooldownUntil(params.Email); ok {
		return nil, &CooldownError{Until: until}
	}

	identity, err := m.client.Signup(ctx, params)
	if err != nil {
		if _, ok := api.IsRateLimited(err); ok {
			m.startCooldown(params.Email)
		}
		return nil, err
	}

	m.clearCooldown(params.Email)
	m.adopt(identity)
	return identity, nil
}

// Logout fires a best-effort remote logout, then unconditionally clears the
// local identity, the persisted record and every token artifact.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()

	userID := ""
	if identity != nil {
		userID = identity.UserID
	}
	if err := m.client.Logout(ctx, userID); err != nil {
		m.log.Warn("remote logout failed", zap.Error(err))
	}

	m.purgeRecord()
	m.setState(StateUnauthenticated, nil, false)
}

// SweepInactivity purges an expired persisted record on startup and fires a
// best-effort remote logout for it.
func (m *Manager) SweepInactivity(ctx context.Context) {
	record, ok, err := m.records.Load()
	if err != nil {
		m.log.Warn("loading persisted record failed", zap.Error(err))
		return
	}
	if !ok || !record.Expired(m.now()) {
		return
	}

	m.purgeRecord()
	if err := m.client.Logout(ctx, record.Identity.UserID); err != nil {
		m.log.Warn("remote logout for expired record failed", zap.Error(err))
	}
	m.log.Info("purged expired session record", zap.String("user_id", record.Identity.UserID))
}

// TouchActivity bumps the persisted record's lastActiveAt, throttled so
// bursts of activity coalesce into one write.
func (m *Manager) TouchActivity() {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastTouch) < activityThrottle {
		m.mu.Unlock()
		return
	}
	m.lastTouch = now
	m.mu.Unlock()

	if err := m.records.Touch(); err != nil {
		m.log.Warn("touching persisted record failed", zap.Error(err))
	}
}

// adopt persists a freshly verified identity and moves to authenticated.
func (m *Manager) adopt(identity *api.Identity) {
	if err := m.records.Save(identity); err != nil {
		m.log.Warn("persisting identity failed", zap.Error(err))
	}
	m.persistTokens(identity)
	m.setState(StateAuthenticated, identity, false)
}

func (m *Manager) persistTokens(identity *api.Identity) {
	if identity.AccessToken != "" {
		if err := m.records.SetToken(accessTokenKey, identity.AccessToken); err != nil {
			m.log.Warn("persisting access token failed", zap.Error(err))
		}
	}
	if identity.RefreshToken != "" {
		if err := m.records.SetToken(refreshTokenKey, identity.RefreshToken); err != nil {
			m.log.Warn("persisting refresh token failed", zap.Error(err))
		}
	}
}

func (m *Manager) purgeRecord() {
	if err := m.records.Clear(); err != nil {
		m.log.Warn("clearing persisted record failed", zap.Error(err))
	}
	if err := m.records.ClearTokens(); err != nil {
		m.log.Warn("clearing token artifacts failed", zap.Error(err))
	}
}

func (m *Manager) setState(state State, identity *api.Identity, soft bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.identity = identity
	m.soft = soft
}
