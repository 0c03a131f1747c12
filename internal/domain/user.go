// Package domain contains entities without transport, just state and meta-data.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxIdentityLen = 36
	MaxAvatarLen   = 16
	DefaultAvatar  = "🎵"
)

var (
	ErrIdentityTooLong = errors.New("identity too long")
	ErrIdentityEmpty   = errors.New("identity empty")
)

// Identity is the display name a member joins a room with.
// It is unique within a room.
type Identity string

// NewIdentity trims and validates a display name.
func NewIdentity(name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrIdentityEmpty
	}
	if utf8.RuneCountInString(name) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(name), nil
}

// NormalizeAvatar falls back to the default avatar and truncates oversized ones.
func NormalizeAvatar(avatar string) string {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return DefaultAvatar
	}
	if utf8.RuneCountInString(avatar) > MaxAvatarLen {
		return string([]rune(avatar)[:MaxAvatarLen])
	}
	return avatar
}
