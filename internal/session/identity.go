/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"
	"strings"

	"github.com/Seednode/pointbox/internal/roster"
	"github.com/google/uuid"
)

// TradeoffPrefix marks rooms that run the tradeoff slider instead of cards.
const TradeoffPrefix = "tradeoff-"

const (
	DefaultFacilitatorNickname = "Facilitator"
	userIDPrefix               = "user_"
)

type Mode string

const (
	ModePoker    Mode = "poker"
	ModeTradeoff Mode = "tradeoff"
)

func ModeForRoom(roomID string) Mode {
	if strings.HasPrefix(roomID, TradeoffPrefix) {
		return ModeTradeoff
	}

	return ModePoker
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePoker:
		return ModePoker, nil
	case ModeTradeoff:
		return ModeTradeoff, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Identity is read once when a session starts and never changes.
type Identity struct {
	RoomID      string
	UserID      string
	Nickname    string
	Facilitator bool
}

// NewIdentity generates a fresh logical id for this peer.
func NewIdentity(roomID, nickname string, facilitator bool) Identity {
	nickname = strings.TrimSpace(nickname)

	if nickname == "" {
		nickname = roster.UnknownNickname
		if facilitator {
			nickname = DefaultFacilitatorNickname
		}
	}

	return Identity{
		RoomID:      roomID,
		UserID:      userIDPrefix + uuid.NewString(),
		Nickname:    nickname,
		Facilitator: facilitator,
	}
}

func (id Identity) metadata() roster.Metadata {
	return roster.Metadata{
		UserID:      id.UserID,
		Nickname:    id.Nickname,
		Facilitator: id.Facilitator,
	}
}
