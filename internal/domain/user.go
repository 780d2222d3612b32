// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxDisplayNameLen  = 36
	DefaultDisplayName = "Guest"
)

type PeerID string

// NewPeerID returns a fresh connection-scoped peer id.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// NormalizeDisplayName trims the user supplied name and falls back to def
// when nothing is left.
func NormalizeDisplayName(name, def string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if def == "" {
			def = DefaultDisplayName
		}
		return def, nil
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}
