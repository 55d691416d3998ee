package relay

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	t.Fatalf("metric %s not found", name)

	return 0
}

func TestRandomRoomID(t *testing.T) {
	seen := make(map[string]bool)

	for range 100 {
		id := RandomRoomID()
		assert.Regexp(t, `^[A-Z0-9]{8}$`, id)
		assert.True(t, ValidRoomID(id))

		seen[id] = true
	}

	assert.Greater(t, len(seen), 95)
}

func TestManager_NewRoomID(t *testing.T) {
	m := NewManager(Options{})

	assert.Regexp(t, `^[A-Z0-9]{8}$`, m.NewRoomID(false))
	assert.Regexp(t, `^tradeoff-[A-Z0-9]{8}$`, m.NewRoomID(true))
}

func TestValidRoomID(t *testing.T) {
	for _, id := range []string{"ABC123", "tradeoff-XYZ98765", "team_1"} {
		assert.True(t, ValidRoomID(id), id)
	}

	for _, id := range []string{"", "a b", "../etc", "room?", string(make([]byte, 65))} {
		assert.False(t, ValidRoomID(id), id)
	}
}

func TestManager_Reap(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(Options{IdleTimeout: time.Minute, Metrics: NewMetrics(reg)})

	busy := m.Room("BUSY")
	m.Room("IDLE")

	c := &client{id: "peer_1", send: make(chan []byte, 4)}
	require.NoError(t, busy.join(c))

	assert.Same(t, busy, m.Room("BUSY"))
	assert.Equal(t, []string{"BUSY", "IDLE"}, m.Rooms())
	assert.Equal(t, 2.0, gauge(t, reg, "pointbox_rooms"))
	assert.Equal(t, 1.0, gauge(t, reg, "pointbox_peers"))

	// nothing has been idle for a minute yet
	assert.Zero(t, m.reap(time.Now().Add(-time.Minute)))

	assert.Equal(t, 1, m.reap(time.Now().Add(time.Second)))
	assert.Equal(t, []string{"BUSY"}, m.Rooms())
	assert.Equal(t, 1.0, gauge(t, reg, "pointbox_rooms"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Run(ctx))

	assert.Empty(t, m.Rooms())
	assert.Equal(t, 0.0, gauge(t, reg, "pointbox_peers"))

	_, open := <-c.send
	assert.True(t, open, "welcome frame still queued")

	_, open = <-c.send
	assert.False(t, open)
}

func TestRoom_Fanout(t *testing.T) {
	m := NewManager(Options{PeerLimit: 2})
	r := m.Room("ABC123")

	a := &client{id: "a", send: make(chan []byte, 8)}
	b := &client{id: "b", send: make(chan []byte, 8)}
	c := &client{id: "c", send: make(chan []byte, 8)}

	require.NoError(t, r.join(a))
	require.NoError(t, r.join(b))
	assert.ErrorIs(t, r.join(c), ErrRoomFull)
	assert.Equal(t, 2, r.Size())

	r.broadcast(a, "hello")
	r.leave(b)
	r.leave(b)

	// a: welcome, joined(b), left(b); b: welcome, data
	frames := func(ch chan []byte, n int) []string {
		var out []string
		for range n {
			out = append(out, string(<-ch))
		}

		return out
	}

	gotA := frames(a.send, 3)
	assert.Contains(t, gotA[0], `"kind":"welcome"`)
	assert.Contains(t, gotA[1], `"kind":"joined"`)
	assert.Contains(t, gotA[2], `"kind":"left"`)

	gotB := frames(b.send, 2)
	assert.Contains(t, gotB[0], `"peers":[{"id":"a"`)
	assert.Contains(t, gotB[1], `"data":"hello"`)
	assert.Contains(t, gotB[1], `"peerId":"a"`)

	_, open := <-b.send
	assert.False(t, open)

	r.close()
}
