/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"sync"
)

// Game is the uniform contract every variant implements. A Game instance is
// owned by exactly one Room and is only ever touched with that room's lock
// held, so implementations do no locking of their own.
type Game interface {
	// Admit registers a new participant and returns their public
	// assignment (e.g. a symbol), or "" if they join as an observer.
	Admit(connID string) string

	// Migrate re-keys every internal reference from oldID to newID.
	// It is a no-op when oldID == newID.
	Migrate(oldID, newID string)

	// Remove deletes the participant and applies any mid-round
	// consequence of their departure.
	Remove(connID string)

	// Apply validates and executes a single action for connID. On
	// rejection the machine's state is unchanged.
	Apply(act *Action, connID string) Result

	// Snapshot renders the externally-visible state, redacting whatever
	// the current phase says must stay hidden.
	Snapshot() any
}

// Closer is implemented by variants that own timers or in-flight work.
// The registry calls Close exactly once when the room is destroyed.
type Closer interface {
	Close()
}

type Result struct {
	OK     bool
	Reason string
}

func accept() Result { return Result{OK: true} }

func reject(reason string) Result { return Result{OK: false, Reason: reason} }

// Seat pairs a connection with its durable display name. The registry stamps
// the current roster onto every action before dispatch, so machines never
// trust a client-supplied player list.
type Seat struct {
	ConnID   string `json:"conn_id"`
	Username string `json:"username"`
}

// Action is the envelope for every in-game command. One flat struct with
// optional fields keeps the wire format a single JSON object per variant
// action; each variant reads only the fields it knows.
type Action struct {
	Type string `json:"type"`

	// relay
	Words      []string `json:"words,omitempty"`
	Count      int      `json:"count,omitempty"`
	TargetTeam int      `json:"target_team,omitempty"`

	// bluff / imposter / imposterqa
	Category   string `json:"category,omitempty"`
	Definition string `json:"definition,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Word       string `json:"word,omitempty"`
	Question   string `json:"question,omitempty"`

	// shared targeting
	Index    int    `json:"index"`
	TargetID string `json:"target_id,omitempty"`

	// cabal
	Vote     string `json:"vote,omitempty"`
	Power    string `json:"power,omitempty"`
	Approved bool   `json:"approved,omitempty"`
	Confirm  bool   `json:"confirm,omitempty"`

	// Stamped by the registry before dispatch.
	roster []Seat
}

// Sender is the narrow transport contract the orchestrator depends on:
// room-wide fanout and targeted private delivery.
type Sender interface {
	Broadcast(roomID string, event string, payload any)
	Send(connID string, event string, payload any)
}

const (
	variantTicTacToe  = "tictactoe"
	variantRelay      = "relay"
	variantBluff      = "bluff"
	variantImposter   = "imposter"
	variantImposterQA = "imposterqa"
	variantCabal      = "cabal"
)

// newGame constructs the machine for a variant, or nil for an unknown tag.
// Variants that broadcast outside the dispatch path (timers, content
// loading) receive the sender, their room ID, and the room's lock.
func newGame(cfg *Config, variant, roomID string, sender Sender, mu sync.Locker, gen Generator) Game {
	switch variant {
	case variantTicTacToe:
		return newTicTacToe()
	case variantRelay:
		return newRelay(cfg, roomID, sender, mu)
	case variantBluff:
		return newBluff(cfg, roomID, sender, mu, gen)
	case variantImposter:
		return newImposter(cfg, roomID, sender, mu, gen)
	case variantImposterQA:
		return newImposterQA(cfg, roomID, sender, mu, gen)
	case variantCabal:
		return newCabal(roomID, sender)
	default:
		return nil
	}
}

func shuffle[T any](s []T) {
	rand.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

func knownVariants() []string {
	return []string{
		variantTicTacToe,
		variantRelay,
		variantBluff,
		variantImposter,
		variantImposterQA,
		variantCabal,
	}
}
