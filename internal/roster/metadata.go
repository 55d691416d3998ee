/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package roster

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	UnknownNickname = "Unknown"
	fallbackPrefix  = "member-"
)

var ErrMetadata = errors.New("invalid member metadata")

// Metadata is what each peer attaches to its transport membership so others
// can learn its logical identity.
type Metadata struct {
	UserID      string `json:"userId"`
	Nickname    string `json:"nickname"`
	Facilitator bool   `json:"isFacilitator"`
}

func EncodeMetadata(m Metadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ParseMetadata decodes raw. It fails when raw is not a JSON object; missing
// fields are left empty for the caller to fill in.
func ParseMetadata(raw string) (Metadata, error) {
	var m Metadata

	if raw == "" {
		return m, fmt.Errorf("%w: empty", ErrMetadata)
	}

	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	return m, nil
}

// FallbackID is the logical id given to a peer whose metadata carries none.
func FallbackID(peerID string) string {
	return fallbackPrefix + peerID
}

func (m Metadata) withFallback(peerID string) Metadata {
	if m.UserID == "" {
		m.UserID = FallbackID(peerID)
	}

	if m.Nickname == "" {
		m.Nickname = UnknownNickname
	}

	return m
}
