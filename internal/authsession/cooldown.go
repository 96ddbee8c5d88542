package authsession

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CooldownError blocks a signup attempt while its per-email cooldown runs.
type CooldownError struct {
	Until time.Time
}

func (e *CooldownError) Error() string {
	remaining := time.Until(e.Until).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("signup is rate limited, wait %s and try again", remaining)
}

// cooldownUntil consults the in-memory mirror first, then the persisted
// store, so a restart honors the cooldown.
func (m *Manager) cooldownUntil(email string) (time.Time, bool) {
	if value, ok := m.cooldowns.Get(email); ok {
		until := value.(time.Time)
		if m.now().Before(until) {
			return until, true
		}
		m.cooldowns.Delete(email)
	}

	until, ok, err := m.records.Cooldown(email)
	if err != nil {
		m.log.Warn("reading signup cooldown failed", zap.Error(err))
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	if !m.now().Before(until) {
		m.clearCooldown(email)
		return time.Time{}, false
	}
	m.cooldowns.Set(email, until, time.Until(until))
	return until, true
}

func (m *Manager) startCooldown(email string) {
	until := m.now().Add(SignupCooldown)
	m.cooldowns.Set(email, until, gocache.DefaultExpiration)
	if err := m.records.SetCooldown(email, until); err != nil {
		m.log.Warn("persisting signup cooldown failed", zap.Error(err))
	}
}

func (m *Manager) clearCooldown(email string) {
	m.cooldowns.Delete(email)
	if err := m.records.ClearCooldown(email); err != nil {
		m.log.Warn("clearing signup cooldown failed", zap.Error(err))
	}
}
