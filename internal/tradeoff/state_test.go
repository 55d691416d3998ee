package tradeoff_test

import (
	"math"
	"testing"

	"github.com/Seednode/pointbox/internal/tradeoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := tradeoff.New()

	assert.Equal(t, tradeoff.DefaultTheme, s.Theme())
	assert.False(t, s.Locked())
	assert.Equal(t, tradeoff.DefaultValue, s.Value("anyone"))
	assert.False(t, s.Moved("anyone"))
}

func TestState_SlideOnlyTouchesSender(t *testing.T) {
	s := tradeoff.New()

	require.NoError(t, s.Slide("alice", 20))
	require.NoError(t, s.Slide("bob", 80))

	assert.Equal(t, 20.0, s.Value("alice"))
	assert.Equal(t, 80.0, s.Value("bob"))
	assert.Equal(t, tradeoff.DefaultValue, s.Value("carol"))

	require.NoError(t, s.Slide("alice", 35))
	assert.Equal(t, 35.0, s.Value("alice"))
	assert.Equal(t, 80.0, s.Value("bob"))
}

func TestState_SlideRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"negative", -1},
		{"above max", 100.5},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tradeoff.New()
			err := s.Slide("alice", tt.value)
			assert.ErrorIs(t, err, tradeoff.ErrValueRange)
			assert.False(t, s.Moved("alice"))
		})
	}

	t.Run("bounds are inclusive", func(t *testing.T) {
		s := tradeoff.New()
		assert.NoError(t, s.Slide("alice", tradeoff.MinValue))
		assert.NoError(t, s.Slide("bob", tradeoff.MaxValue))
	})
}

func TestState_Forget(t *testing.T) {
	s := tradeoff.New()
	require.NoError(t, s.Slide("alice", 10))

	s.Forget("alice")
	assert.Equal(t, tradeoff.DefaultValue, s.Value("alice"))
}

func TestNewTheme(t *testing.T) {
	th, err := tradeoff.NewTheme("  Scope ", "Time")
	require.NoError(t, err)
	assert.Equal(t, tradeoff.Theme{Left: "Scope", Right: "Time"}, th)

	_, err = tradeoff.NewTheme("", "Time")
	assert.ErrorIs(t, err, tradeoff.ErrEmptyLabel)

	_, err = tradeoff.NewTheme("Scope", "   ")
	assert.ErrorIs(t, err, tradeoff.ErrEmptyLabel)
}

func TestState_ShouldBroadcast(t *testing.T) {
	s := tradeoff.New()

	assert.True(t, s.ShouldBroadcast(false))
	assert.True(t, s.ShouldBroadcast(true))

	s.SetLocked(true)
	assert.False(t, s.ShouldBroadcast(false))
	assert.True(t, s.ShouldBroadcast(true))

	s.SetLocked(false)
	assert.True(t, s.ShouldBroadcast(false))
}
