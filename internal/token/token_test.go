package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer("", "app", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)

	i, err := NewIssuer("secret", "app", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, i.ttl)
}

func TestIssuer_RoundTrip(t *testing.T) {
	i, err := NewIssuer("secret", "app", time.Hour)
	require.NoError(t, err)

	tok, issued, err := i.Issue("member_1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, []string{AnyRoom}, issued.Rooms)

	for _, room := range []string{"ABC123", "tradeoff-XYZ98765"} {
		c, err := i.Verify(tok, room)
		require.NoError(t, err)
		assert.Equal(t, issued, c)
	}
}

func TestIssuer_Verify(t *testing.T) {
	i, err := NewIssuer("secret", "app", time.Hour)
	require.NoError(t, err)

	tok, _, err := i.Issue("member_1")
	require.NoError(t, err)

	t.Run("tampered payload", func(t *testing.T) {
		payload, sig, _ := strings.Cut(tok, ".")
		_, err := i.Verify(payload+"x."+sig, "room")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := i.Verify("abc", "room")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewIssuer("other", "app", time.Hour)
		require.NoError(t, err)

		_, err = other.Verify(tok, "room")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("other application", func(t *testing.T) {
		other, err := NewIssuer("secret", "another-app", time.Hour)
		require.NoError(t, err)

		_, err = other.Verify(tok, "room")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		later := *i
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err := later.Verify(tok, "room")
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := i.Verify(strings.Repeat("a", maxTokenLen+1), "room")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestIssuer_Scope(t *testing.T) {
	i, err := NewIssuer("secret", "app", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	i.now = func() time.Time { return now }

	c := Claims{
		ID:        "jti",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		AppID:     "app",
		Rooms:     []string{"tradeoff-*"},
	}
	scoped, err := i.encode(c)
	require.NoError(t, err)

	_, err = i.Verify(scoped, "tradeoff-ABCD1234")
	assert.NoError(t, err)

	_, err = i.Verify(scoped, "ABCD1234")
	assert.ErrorIs(t, err, ErrScope)
}
