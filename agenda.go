/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrEmptyAgenda = errors.New("agenda has no tasks")

// Agenda is a list of tasks the facilitator walks through with "next".
type Agenda struct {
	Title string   `yaml:"title" toml:"title"`
	Tasks []string `yaml:"tasks" toml:"tasks"`

	pos int
}

// LoadAgenda reads a .yaml, .yml, or .toml agenda file.
func LoadAgenda(path string) (*Agenda, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	a, err := parseAgenda(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return a, nil
}

func parseAgenda(data []byte, ext string) (*Agenda, error) {
	a := &Agenda{}

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, a); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), a); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported agenda format %q", ext)
	}

	tasks := a.Tasks[:0]
	for _, t := range a.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			tasks = append(tasks, t)
		}
	}
	a.Tasks = tasks

	if len(a.Tasks) == 0 {
		return nil, ErrEmptyAgenda
	}

	return a, nil
}

// Next returns the next task, or false once the agenda is used up.
func (a *Agenda) Next() (string, bool) {
	t, ok := a.Peek()
	if ok {
		a.Advance()
	}

	return t, ok
}

// Peek returns the next task without moving past it.
func (a *Agenda) Peek() (string, bool) {
	if a == nil || a.pos >= len(a.Tasks) {
		return "", false
	}

	return a.Tasks[a.pos], true
}

func (a *Agenda) Advance() {
	if a != nil && a.pos < len(a.Tasks) {
		a.pos++
	}
}

func (a *Agenda) Remaining() int {
	if a == nil {
		return 0
	}

	return len(a.Tasks) - a.pos
}
