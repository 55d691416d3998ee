package roster_test

import (
	"fmt"
	"testing"

	"github.com/Seednode/pointbox/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(t *testing.T, id, nickname string, facilitator bool) string {
	t.Helper()

	raw, err := roster.EncodeMetadata(roster.Metadata{
		UserID:      id,
		Nickname:    nickname,
		Facilitator: facilitator,
	})
	require.NoError(t, err)

	return raw
}

func newRoster() *roster.Roster {
	r := roster.New(roster.Metadata{UserID: "user_self", Nickname: "Me", Facilitator: true})
	r.SetLocalPeer("peer-self")

	return r
}

func TestNew_SeedsSelf(t *testing.T) {
	r := newRoster()

	require.Equal(t, 1, r.Len())

	self := r.Self()
	assert.Equal(t, "user_self", self.ID)
	assert.Equal(t, "Me", self.Nickname)
	assert.True(t, self.Facilitator)
	assert.True(t, self.Enabled)
}

func TestRoster_Seed(t *testing.T) {
	r := newRoster()

	added, err := r.Seed([]roster.Member{
		{PeerID: "p1", Metadata: meta(t, "user_a", "Alice", false)},
		{PeerID: "p2", Metadata: meta(t, "user_b", "Bob", false)},
		{PeerID: "peer-self", Metadata: meta(t, "user_self", "Me", true)},
		{PeerID: "p3", Metadata: "{not json"},
		{PeerID: "p4", Metadata: `{}`},
	})

	assert.ErrorIs(t, err, roster.ErrMetadata)
	require.Len(t, added, 3)
	assert.Equal(t, 4, r.Len())

	fallback, ok := r.Get(roster.FallbackID("p4"))
	require.True(t, ok)
	assert.Equal(t, roster.UnknownNickname, fallback.Nickname)

	_, ok = r.LogicalID("p3")
	assert.False(t, ok)
}

func TestRoster_SeedIsIdempotent(t *testing.T) {
	r := newRoster()
	members := []roster.Member{
		{PeerID: "p1", Metadata: meta(t, "user_a", "Alice", false)},
	}

	_, err := r.Seed(members)
	require.NoError(t, err)

	added, err := r.Seed(members)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 2, r.Len())
}

func TestRoster_JoinAfterSnapshotHasNoDuplicates(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("existing=%d", n), func(t *testing.T) {
			r := newRoster()

			var members []roster.Member
			for i := range n {
				members = append(members, roster.Member{
					PeerID:   fmt.Sprintf("p%d", i),
					Metadata: meta(t, fmt.Sprintf("user_%d", i), fmt.Sprintf("P%d", i), false),
				})
			}

			_, err := r.Seed(members)
			require.NoError(t, err)
			before := r.Len()

			// join event for a peer already in the snapshot
			for _, m := range members {
				_, added, err := r.Join(m.PeerID, m.Metadata)
				require.NoError(t, err)
				assert.False(t, added)
			}

			_, added, err := r.Join("p-new", meta(t, "user_new", "New", false))
			require.NoError(t, err)
			assert.True(t, added)

			assert.Equal(t, before+1, r.Len())

			seen := make(map[string]bool)
			for _, p := range r.List() {
				assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
				seen[p.ID] = true
			}
		})
	}
}

func TestRoster_JoinFallback(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		wantErr  bool
	}{
		{"empty", "", true},
		{"garbage", "<<<", true},
		{"missing fields", `{"isFacilitator":true}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoster()

			p, added, err := r.Join("p9", tt.metadata)
			if tt.wantErr {
				assert.ErrorIs(t, err, roster.ErrMetadata)
			} else {
				assert.NoError(t, err)
			}

			assert.True(t, added)
			assert.Equal(t, "member-p9", p.ID)
			assert.Equal(t, "Unknown", p.Nickname)
			assert.Equal(t, 2, r.Len())
		})
	}
}

func TestRoster_JoinIgnoresLocalPeer(t *testing.T) {
	r := newRoster()

	_, added, err := r.Join("peer-self", "garbage")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_Leave(t *testing.T) {
	r := newRoster()
	_, _, err := r.Join("p1", meta(t, "user_a", "Alice", false))
	require.NoError(t, err)

	_, ok := r.Leave("unknown-peer")
	assert.False(t, ok)

	p, ok := r.Leave("p1")
	require.True(t, ok)
	assert.Equal(t, "user_a", p.ID)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Leave("p1")
	assert.False(t, ok, "second leave is a no-op")
}

func TestRoster_LeaveKeepsReconnectedParticipant(t *testing.T) {
	r := newRoster()
	_, _, _ = r.Join("p1", meta(t, "user_a", "Alice", false))
	_, added, _ := r.Join("p2", meta(t, "user_a", "Alice", false))
	assert.False(t, added)

	_, ok := r.Leave("p1")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())

	_, ok = r.Leave("p2")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_LeaveNeverRemovesSelf(t *testing.T) {
	r := newRoster()
	_, _, _ = r.Join("p-echo", meta(t, "user_self", "Me", true))

	_, ok := r.Leave("p-echo")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_SetEnabled(t *testing.T) {
	r := newRoster()
	_, _, _ = r.Join("p1", meta(t, "user_a", "Alice", false))

	require.True(t, r.SetEnabled("user_a", false))
	p, _ := r.Get("user_a")
	assert.False(t, p.Enabled)
	assert.Equal(t, 2, r.Len(), "disable keeps the entry")
	assert.Equal(t, []string{"user_self"}, r.EnabledIDs())

	require.True(t, r.SetEnabled("user_a", true))
	p, _ = r.Get("user_a")
	assert.True(t, p.Enabled)
	assert.Equal(t, []string{"user_self", "user_a"}, r.EnabledIDs())

	assert.False(t, r.SetEnabled("nobody", false))
}

func TestRoster_ListOrder(t *testing.T) {
	r := newRoster()
	_, _, _ = r.Join("p2", meta(t, "user_b", "Bob", false))
	_, _, _ = r.Join("p1", meta(t, "user_a", "Alice", false))

	assert.Equal(t, []string{"user_self", "user_b", "user_a"}, r.IDs())
}
