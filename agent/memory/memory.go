// Package memory is the durable per-session conversation log. Each session
// owns an ordered, append-only sequence of turns; one record is persisted per
// (session_id, seq) pair.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
)

// DefaultRetention caps a session's history to its most recent turns so
// memory growth stays bounded. Enforced by every backend on append.
const DefaultRetention = 200

// Turn is one query/response exchange. Immutable once appended. Seq is
// assigned by the backend and strictly increases within a session.
type Turn struct {
	Seq         int64     `json:"seq"`
	Query       string    `json:"query"`
	Response    string    `json:"response"`
	CustomerIDs []string  `json:"customer_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the caller-facing session memory contract.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
	Summarize(ctx context.Context, sessionID string) (string, error)
	Clear(ctx context.Context, sessionID string) error
}

// Backend is the persistence driver behind a Memory. Backends assign turn
// sequence numbers and enforce the retention cap; they do not serialize
// concurrent access, that is Memory's job.
type Backend interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	List(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// Memory serializes operations per session id over a Backend. Operations on
// different sessions never block one another; operations on the same session
// are mutually exclusive so turn order stays an invariant.
type Memory struct {
	backend Backend
	locks   sync.Map // session id -> *sync.Mutex
}

func New(backend Backend) (*Memory, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", contractx.ErrValidation)
	}
	return &Memory{backend: backend}, nil
}

func (m *Memory) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append inserts the turn at the end of the session's sequence, creating the
// session implicitly if absent. Nothing is written for a cancelled request.
func (m *Memory) Append(ctx context.Context, sessionID string, turn Turn) error {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	mu := m.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.backend.Append(ctx, sessionID, turn); err != nil {
		return fmt.Errorf("%w: append session=%s: %v", contractx.ErrMemoryUnavailable, sessionID, err)
	}
	return nil
}

// Turns returns the session's history in insertion order.
func (m *Memory) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	mu := m.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	turns, err := m.backend.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list session=%s: %v", contractx.ErrMemoryUnavailable, sessionID, err)
	}
	return turns, nil
}

// Summarize produces a digest of the session's history for use as generation
// context. An empty or unknown session yields the explicit no-history marker,
// never an error.
func (m *Memory) Summarize(ctx context.Context, sessionID string) (string, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return "", err
	}

	turns, err := m.Turns(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return EmptyHistoryMarker(sessionID), nil
	}
	return digest(sessionID, turns), nil
}

// Clear removes all turns for the session. Clearing an empty or nonexistent
// session succeeds silently.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return err
	}

	mu := m.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.backend.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: clear session=%s: %v", contractx.ErrMemoryUnavailable, sessionID, err)
	}
	return nil
}

func (m *Memory) Close() error {
	return m.backend.Close()
}

func normalizeSessionID(sessionID string) (string, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return "", contractx.ErrInvalidSession
	}
	return trimmed, nil
}
