// Package tokens issues and redeems the rotating codes a presenter shows
// on screen.
package tokens

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/models"
)

var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidSession = errors.New("session is not active")
)

const maxCodeAttempts = 8

// ActiveChecker answers whether a session may still have codes issued.
type ActiveChecker interface {
	IsActive(sessionID string) bool
}

// Issuer owns the live-credential table. Codes are never revoked by
// rotation; each one lives until its own expiresAt.
type Issuer struct {
	sessions  ActiveChecker
	clock     clock.Clock
	retention time.Duration
	random    io.Reader
	logger    *slog.Logger

	mu           sync.Mutex
	live         map[string]models.Credential
	expiries     expiryHeap
	retired      map[string]retiredCode
	retiredOrder []string
}

// NewIssuer builds an issuer. Expired codes are remembered for retention
// so that redeeming one keeps reporting ErrTokenExpired after eviction.
func NewIssuer(sessions ActiveChecker, clk clock.Clock, retention time.Duration, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		sessions:  sessions,
		clock:     clk,
		retention: retention,
		random:    defaultRandom,
		logger:    logger,
		live:      make(map[string]models.Credential),
		retired:   make(map[string]retiredCode),
	}
}

// Issue registers a fresh code for sessionID valid for ttl.
func (i *Issuer) Issue(sessionID string, ttl time.Duration) (models.Credential, error) {
	if ttl <= 0 {
		return models.Credential{}, fmt.Errorf("issue token: ttl must be positive, got %s", ttl)
	}
	if !i.sessions.IsActive(sessionID) {
		return models.Credential{}, ErrInvalidSession
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	code, err := i.uniqueCodeLocked()
	if err != nil {
		return models.Credential{}, err
	}
	now := i.clock.Now()
	cred := models.Credential{
		Code:      code,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	i.live[code] = cred
	heap.Push(&i.expiries, expiry{code: code, expiresAt: cred.ExpiresAt})
	return cred, nil
}

func (i *Issuer) uniqueCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode(i.random)
		if err != nil {
			return "", fmt.Errorf("issue token: %w", err)
		}
		if _, taken := i.live[code]; taken {
			continue
		}
		if _, taken := i.retired[code]; taken {
			continue
		}
		return code, nil
	}
	return "", errors.New("issue token: no unused code after retries")
}

// Redeem returns the credential bound to code. The code stays valid for
// other participants until it expires.
func (i *Issuer) Redeem(code string) (models.Credential, error) {
	if !ValidCode(code) {
		return models.Credential{}, ErrTokenNotFound
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	if cred, ok := i.live[code]; ok {
		if now.After(cred.ExpiresAt) {
			i.retireLocked(cred, now)
			return models.Credential{}, ErrTokenExpired
		}
		return cred, nil
	}
	if _, ok := i.retired[code]; ok {
		return models.Credential{}, ErrTokenExpired
	}
	return models.Credential{}, ErrTokenNotFound
}

func (i *Issuer) retireLocked(cred models.Credential, now time.Time) {
	delete(i.live, cred.Code)
	i.retired[cred.Code] = retiredCode{sessionID: cred.SessionID, retiredAt: now}
	i.retiredOrder = append(i.retiredOrder, cred.Code)
}

// Sweep evicts every code past its expiresAt and forgets retired codes
// older than the retention window. It returns how many codes it evicted.
func (i *Issuer) Sweep() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	evicted := 0
	for i.expiries.Len() > 0 && now.After(i.expiries[0].expiresAt) {
		next := heap.Pop(&i.expiries).(expiry)
		cred, ok := i.live[next.code]
		if !ok || !cred.ExpiresAt.Equal(next.expiresAt) {
			// already retired by Redeem or Forget
			continue
		}
		i.retireLocked(cred, now)
		evicted++
	}

	cutoff := now.Add(-i.retention)
	drop := 0
	for _, code := range i.retiredOrder {
		r, ok := i.retired[code]
		if ok && r.retiredAt.After(cutoff) {
			break
		}
		delete(i.retired, code)
		drop++
	}
	i.retiredOrder = i.retiredOrder[drop:]
	return evicted
}

// Forget retires every live code for sessionID. Called once the session
// can no longer accept attendance.
func (i *Issuer) Forget(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	for _, cred := range i.live {
		if cred.SessionID == sessionID {
			i.retireLocked(cred, now)
		}
	}
}

// LiveCount is the number of codes not yet evicted.
func (i *Issuer) LiveCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.live)
}

// Run sweeps every interval until ctx is done.
func (i *Issuer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := i.Sweep(); n > 0 {
				i.logger.Debug("evicted expired tokens", "count", n)
			}
		}
	}
}
