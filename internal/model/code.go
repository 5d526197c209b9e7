package model

import (
	"strings"
	"time"
	"unicode"
)

// Code status values as persisted in the seen_codes table.
const (
	CodeStatusActive  = "active"
	CodeStatusExpired = "expired"
)

// CandidateCode is a code/reward pair freshly fetched from a source. It is
// produced on every fetch and never persisted as-is.
type CandidateCode struct {
	Game    Game
	Code    string // normalized via NormalizeCode before any comparison
	Rewards string
}

// SeenCodeRecord represents a code already announced, in the database.
// Created once per distinct (game, code); only Status changes afterwards,
// and only from active to expired.
type SeenCodeRecord struct {
	Game         Game      `db:"game" json:"game"`
	Code         string    `db:"code" json:"code"`
	Rewards      string    `db:"rewards" json:"rewards"`
	Status       string    `db:"status" json:"status"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
}

// Destination is a delivery target registered for a game's code
// announcements. ChannelID is opaque to the pipeline; the notifier decides
// what it means.
type Destination struct {
	Game      Game   `db:"game" json:"game"`
	ChannelID string `db:"channel_id" json:"channel_id"`
}

// NormalizeCode canonicalizes a raw code for comparison and storage:
// uppercase with all whitespace removed. Raw strings differing only in case
// or whitespace normalize to the same key.
func NormalizeCode(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
