package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgenda(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"yaml", ".yaml", "title: Sprint 42\ntasks:\n  - Login flow\n  - \"  \"\n  - Password reset\n"},
		{"yml", ".YML", "title: Sprint 42\ntasks: [Login flow, Password reset]\n"},
		{"toml", ".toml", "title = \"Sprint 42\"\ntasks = [\"Login flow\", \"\", \"Password reset\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAgenda([]byte(tt.data), tt.ext)
			require.NoError(t, err)

			assert.Equal(t, "Sprint 42", a.Title)
			assert.Equal(t, []string{"Login flow", "Password reset"}, a.Tasks)
		})
	}
}

func TestParseAgenda_Errors(t *testing.T) {
	_, err := parseAgenda([]byte("tasks: []\n"), ".yaml")
	assert.ErrorIs(t, err, ErrEmptyAgenda)

	_, err = parseAgenda([]byte(`{"tasks": ["a"]}`), ".json")
	assert.ErrorContains(t, err, "unsupported agenda format")

	_, err = parseAgenda([]byte("tasks = [\n"), ".toml")
	assert.Error(t, err)
}

func TestAgenda_Next(t *testing.T) {
	a := &Agenda{Tasks: []string{"one", "two"}}
	assert.Equal(t, 2, a.Remaining())

	task, ok := a.Peek()
	assert.True(t, ok)
	assert.Equal(t, "one", task)
	assert.Equal(t, 2, a.Remaining())

	task, ok = a.Next()
	assert.True(t, ok)
	assert.Equal(t, "one", task)
	assert.Equal(t, 1, a.Remaining())

	task, ok = a.Next()
	assert.True(t, ok)
	assert.Equal(t, "two", task)

	_, ok = a.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, a.Remaining())

	a.Advance()
	assert.Equal(t, 0, a.Remaining())

	var none *Agenda
	none.Advance()
	_, ok = none.Peek()
	assert.False(t, ok)
	_, ok = none.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, none.Remaining())
}

func TestLoadAgenda(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.yml")
	require.NoError(t, os.WriteFile(path, []byte("tasks:\n  - Checkout\n"), 0o600))

	a, err := LoadAgenda(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Checkout"}, a.Tasks)

	_, err = LoadAgenda(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
