// Package session tracks queries forwarded upstream so that their responses
// can be returned to the client that asked.
package session

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTimeout is how long a forwarded query waits for its response.
const DefaultTimeout = 30 * time.Second

// ErrIDCollision is returned when the next internal id still names a live
// session, which only happens with about 65536 queries in flight.
var ErrIDCollision = errors.New("proxy ID collision")

// Session is one forwarded query.
type Session struct {
	ID         uint16
	Client     net.Addr
	OriginalID uint16
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Table maps internal transaction ids to sessions. It is safe for
// concurrent use.
type Table struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu       sync.Mutex
	next     uint16
	sessions map[uint16]*Session
}

// New returns an empty table. A zero timeout selects DefaultTimeout.
func New(clock clockwork.Clock, timeout time.Duration) *Table {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Table{
		clock:    clock,
		timeout:  timeout,
		next:     1,
		sessions: make(map[uint16]*Session),
	}
}

// Create allocates the next internal id for a query from client. Ids come
// from a wrapping 16-bit counter; the counter advances even when the id is
// refused so a single stuck session does not block allocation.
func (t *Table) Create(client net.Addr, originalID uint16) (uint16, error) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++

	if _, ok := t.sessions[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrIDCollision, id)
	}

	t.sessions[id] = &Session{
		ID:         id,
		Client:     client,
		OriginalID: originalID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(t.timeout),
	}

	return id, nil
}

// Resolve removes and returns the session for id.
func (t *Table) Resolve(id uint16) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}

	delete(t.sessions, id)

	return *s, true
}

// Sweep removes every session expiring at or before now and returns them.
func (t *Table) Sweep(now time.Time) []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []Session
	for id, s := range t.sessions {
		if !s.ExpiresAt.After(now) {
			expired = append(expired, *s)
			delete(t.sessions, id)
		}
	}

	return expired
}

// List returns the live sessions ordered by id.
func (t *Table) List() []Session {
	t.mu.Lock()
	list := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		list = append(list, *s)
	}
	t.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

// Now returns the table clock's current time.
func (t *Table) Now() time.Time { return t.clock.Now() }

// Timeout returns the session lifetime.
func (t *Table) Timeout() time.Duration { return t.timeout }
