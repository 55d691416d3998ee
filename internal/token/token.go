/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package token issues and checks the short-lived credentials a peer presents
// when joining a room on the relay.
//
// A token is base64url(claims) "." base64url(HMAC-SHA256(secret, claims)).
// Tokens are scoped to one application id and to room name patterns; the
// relay hands out tokens for every room ("*").
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTTL  = 24 * time.Hour
	AnyRoom     = "*"
	maxTokenLen = 4096
)

var (
	ErrNoSecret = errors.New("token secret is not configured")
	ErrInvalid  = errors.New("invalid token")
	ErrExpired  = errors.New("token expired")
	ErrScope    = errors.New("token does not grant this room")
)

// Claims is the signed body of a token.
type Claims struct {
	ID        string   `json:"jti"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
	AppID     string   `json:"app"`
	Member    string   `json:"member"`
	Rooms     []string `json:"rooms"`
}

// Request is the body of a token request.
type Request struct {
	ChannelName string `json:"channelName"`
	MemberName  string `json:"memberName"`
}

type Response struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Issuer struct {
	secret []byte
	appID  string
	ttl    time.Duration

	now func() time.Time
}

func NewIssuer(secret, appID string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Issuer{
		secret: []byte(secret),
		appID:  appID,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for member valid in every room.
func (i *Issuer) Issue(member string) (string, Claims, error) {
	now := i.now()

	c := Claims{
		ID:        uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(i.ttl).Unix(),
		AppID:     i.appID,
		Member:    member,
		Rooms:     []string{AnyRoom},
	}

	tok, err := i.encode(c)
	if err != nil {
		return "", Claims{}, err
	}

	return tok, c, nil
}

func (i *Issuer) encode(c Claims) (string, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	payload := base64.RawURLEncoding.EncodeToString(body)

	return payload + "." + i.sign(payload), nil
}

// Verify checks the signature, expiry, application and room scope of tok.
func (i *Issuer) Verify(tok, room string) (Claims, error) {
	if len(tok) > maxTokenLen {
		return Claims{}, fmt.Errorf("%w: too long", ErrInvalid)
	}

	payload, sig, ok := strings.Cut(tok, ".")
	if !ok {
		return Claims{}, fmt.Errorf("%w: missing signature", ErrInvalid)
	}

	if !hmac.Equal([]byte(sig), []byte(i.sign(payload))) {
		return Claims{}, fmt.Errorf("%w: bad signature", ErrInvalid)
	}

	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var c Claims
	if err := json.Unmarshal(body, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.AppID != i.appID {
		return Claims{}, fmt.Errorf("%w: application mismatch", ErrInvalid)
	}

	if i.now().Unix() >= c.ExpiresAt {
		return Claims{}, ErrExpired
	}

	for _, pattern := range c.Rooms {
		if matched, _ := path.Match(pattern, room); matched {
			return c, nil
		}
	}

	return Claims{}, ErrScope
}

func (i *Issuer) sign(payload string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(payload))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
