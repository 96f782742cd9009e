package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var client = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 5353}

func Test_CreateResolve(t *testing.T) {
	table := New(clockwork.NewFakeClock(), 0)
	assert.Equal(t, DefaultTimeout, table.Timeout())

	id, err := table.Create(client, 0xbeef)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
	assert.Equal(t, 1, table.Len())

	s, ok := table.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, client, s.Client)
	assert.Equal(t, uint16(0xbeef), s.OriginalID)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, 0, table.Len())

	_, ok = table.Resolve(id)
	assert.False(t, ok)
}

func Test_IDsIncrementAndWrap(t *testing.T) {
	table := New(clockwork.NewFakeClock(), time.Second)

	id1, err := table.Create(client, 1)
	require.NoError(t, err)
	id2, err := table.Create(client, 1)
	require.NoError(t, err)
	assert.Equal(t, id1+1, id2)

	table.next = 0xffff
	id, err := table.Create(client, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), id)

	id, err = table.Create(client, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), id)
}

func Test_Collision(t *testing.T) {
	table := New(clockwork.NewFakeClock(), time.Second)

	id, err := table.Create(client, 7)
	require.NoError(t, err)

	table.next = id
	_, err = table.Create(client, 8)
	assert.ErrorIs(t, err, ErrIDCollision)

	// the live session is untouched and the counter moved on
	assert.Equal(t, 1, table.Len())
	next, err := table.Create(client, 9)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)

	s, ok := table.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, uint16(7), s.OriginalID)
}

func Test_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	table := New(clock, 30*time.Second)

	created := clock.Now()
	id, err := table.Create(client, 1)
	require.NoError(t, err)

	assert.Empty(t, table.Sweep(created.Add(29*time.Second)))
	assert.Equal(t, 1, table.Len())

	expired := table.Sweep(created.Add(31 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, id, expired[0].ID)
	assert.Equal(t, 0, table.Len())

	_, ok := table.Resolve(id)
	assert.False(t, ok)
}

func Test_SweepBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	table := New(clock, 30*time.Second)

	_, err := table.Create(client, 1)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = table.Create(client, 2)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	expired := table.Sweep(table.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, uint16(1), expired[0].OriginalID)
	assert.Equal(t, 1, table.Len())
}

func Test_ConcurrentResolveDeliversOnce(t *testing.T) {
	table := New(clockwork.NewRealClock(), time.Minute)

	id, err := table.Create(client, 1)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := table.Resolve(id); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits)
}

func Test_List(t *testing.T) {
	table := New(clockwork.NewFakeClock(), time.Second)
	assert.Empty(t, table.List())

	table.next = 3
	for i := 0; i < 3; i++ {
		_, err := table.Create(client, uint16(10+i))
		require.NoError(t, err)
	}

	list := table.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint16(3), list[0].ID)
	assert.Equal(t, uint16(5), list[2].ID)
	assert.Equal(t, uint16(12), list[2].OriginalID)
}
