/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package poker implements the planning poker card deck and the task/vote
// state machine shared by every peer in a room.
package poker

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Card is a single estimation token. Only values in Deck are valid.
type Card string

const (
	Unsure Card = "?"
	Coffee Card = "☕"
)

// Deck is the ordered set of cards offered to voters.
var Deck = []Card{"0", "1", "2", "3", "5", "8", "13", "21", Unsure, Coffee}

var ErrInvalidCard = errors.New("invalid card")

// ParseCard returns the deck card matching s.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)

	for _, c := range Deck {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidCard, s)
}

// Numeric reports the integer value of the card, if it has one.
func (c Card) Numeric() (int, bool) {
	n, err := strconv.Atoi(string(c))
	if err != nil {
		return 0, false
	}

	return n, true
}

// IsSentinel reports whether the card is one of the non-numeric cards.
func (c Card) IsSentinel() bool {
	return c == Unsure || c == Coffee
}

// Average returns the mean of the numeric cards rounded to one decimal place.
// Sentinels and empty cards are skipped; ok is false when nothing numeric remains.
func Average(cards []Card) (avg float64, ok bool) {
	var sum, count int

	for _, c := range cards {
		n, numeric := c.Numeric()
		if !numeric {
			continue
		}

		sum += n
		count++
	}

	if count == 0 {
		return 0, false
	}

	mean := float64(sum) / float64(count)

	return math.Round(mean*10) / 10, true
}
