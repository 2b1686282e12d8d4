/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"sync"
	"unicode"
)

// Bluff phases.
const (
	bluffLobby     = "LOBBY"
	bluffLoading   = "LOADING"
	bluffInput     = "INPUT"
	bluffVoting    = "VOTING"
	bluffRoundOver = "ROUND_OVER"
	bluffGameOver  = "GAME_OVER"
)

// realAuthor marks the genuine definition in the shuffled lineup.
const realAuthor = "REAL"

type bluffPlayer struct {
	ConnID       string `json:"conn_id"`
	Score        int    `json:"score"`
	Definition   string `json:"definition,omitempty"`
	HasSubmitted bool   `json:"has_submitted"`
	Vote         string `json:"vote,omitempty"`
}

type bluffDefinition struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// Bluff is the bluffing/voting variant: everyone invents a definition for
// an obscure word, the real one is mixed in, and players score by finding
// the truth or by fooling each other.
type Bluff struct {
	cfg    *Config
	roomID string
	sender Sender
	mu     sync.Locker
	gen    Generator

	phase       string
	players     map[string]*bluffPlayer
	queue       []DefinitionRound
	currentWord string
	realDef     string
	definitions []bluffDefinition
	votes       map[string]string // voter -> author voted for
	round       int
	closed      bool
}

func newBluff(cfg *Config, roomID string, sender Sender, mu sync.Locker, gen Generator) *Bluff {
	return &Bluff{
		cfg:     cfg,
		roomID:  roomID,
		sender:  sender,
		mu:      mu,
		gen:     gen,
		phase:   bluffLobby,
		players: make(map[string]*bluffPlayer),
		votes:   make(map[string]string),
	}
}

func (g *Bluff) Admit(connID string) string {
	g.players[connID] = &bluffPlayer{ConnID: connID}
	return ""
}

func (g *Bluff) Migrate(oldID, newID string) {
	if oldID == newID {
		return
	}
	p, ok := g.players[oldID]
	if !ok {
		return
	}
	p.ConnID = newID
	g.players[newID] = p
	delete(g.players, oldID)

	for voter, target := range g.votes {
		if target == oldID {
			g.votes[voter] = newID
		}
	}
	if v, ok := g.votes[oldID]; ok {
		g.votes[newID] = v
		delete(g.votes, oldID)
	}
	for i := range g.definitions {
		if g.definitions[i].Author == oldID {
			g.definitions[i].Author = newID
		}
	}
}

func (g *Bluff) Remove(connID string) {
	delete(g.players, connID)
	delete(g.votes, connID)

	if len(g.players) == 0 {
		return
	}

	// The departure may have been the last missing submission or vote.
	switch g.phase {
	case bluffInput:
		if g.allSubmitted() {
			g.openVoting()
		}
	case bluffVoting:
		if g.allVoted() {
			g.resolveVotes()
		}
	}
}

func (g *Bluff) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *Bluff) Apply(act *Action, connID string) Result {
	switch act.Type {
	case "START_GAME":
		return g.startGame()
	case "SUBMIT_DEFINITION":
		return g.submitDefinition(connID, act.Definition)
	case "VOTE":
		return g.vote(connID, act.Index)
	case "NEXT_ROUND":
		return g.nextRound()
	default:
		return reject(reasonUnknownAction)
	}
}

// normalizeText flattens submissions so the real definition doesn't stand
// out by formatting alone: trim, strip punctuation, collapse whitespace,
// sentence case.
func normalizeText(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	clean := strings.Join(strings.Fields(b.String()), " ")
	if clean == "" {
		return ""
	}

	runes := []rune(strings.ToLower(clean))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func (g *Bluff) startGame() Result {
	if g.phase != bluffLobby && g.phase != bluffGameOver {
		return reject(reasonWrongPhase)
	}
	if len(g.players) < 2 {
		return reject("need at least 2 players")
	}

	for _, p := range g.players {
		p.Score = 0
	}
	g.queue = nil
	g.round = 0
	g.phase = bluffLoading

	go func() {
		rounds := loadDefinitionRounds(g.cfg, g.gen, "General")

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.closed || g.phase != bluffLoading {
			return
		}
		g.queue = rounds
		g.startNextRoundLocked()
		g.sender.Broadcast(g.roomID, "game_update", g.snapshotLocked())
	}()

	return accept()
}

// startNextRoundLocked assumes the room lock is held.
func (g *Bluff) startNextRoundLocked() {
	if len(g.queue) == 0 {
		g.phase = bluffGameOver
		return
	}

	next := g.queue[0]
	g.queue = g.queue[1:]
	g.currentWord = next.Word
	g.realDef = normalizeText(next.Definition)

	g.phase = bluffInput
	g.round++
	g.votes = make(map[string]string)
	g.definitions = nil

	for _, p := range g.players {
		p.Definition = ""
		p.HasSubmitted = false
		p.Vote = ""
	}
}

func (g *Bluff) submitDefinition(connID, text string) Result {
	if g.phase != bluffInput {
		return reject(reasonWrongPhase)
	}
	p, ok := g.players[connID]
	if !ok {
		return reject(reasonNotAuthorized)
	}
	normalized := normalizeText(text)
	if normalized == "" {
		return reject("definition must not be empty")
	}

	p.Definition = normalized
	p.HasSubmitted = true

	if g.allSubmitted() {
		g.openVoting()
	}

	return accept()
}

func (g *Bluff) allSubmitted() bool {
	for _, p := range g.players {
		if !p.HasSubmitted {
			return false
		}
	}
	return true
}

// openVoting lines the real definition up among the fakes.
func (g *Bluff) openVoting() {
	g.phase = bluffVoting
	g.definitions = []bluffDefinition{{Author: realAuthor, Text: g.realDef}}
	for _, p := range g.players {
		g.definitions = append(g.definitions, bluffDefinition{Author: p.ConnID, Text: p.Definition})
	}
	shuffle(g.definitions)
}

func (g *Bluff) vote(connID string, index int) Result {
	if g.phase != bluffVoting {
		return reject(reasonWrongPhase)
	}
	voter, ok := g.players[connID]
	if !ok {
		return reject(reasonNotAuthorized)
	}
	if _, voted := g.votes[connID]; voted {
		return reject("already voted")
	}
	if index < 0 || index >= len(g.definitions) {
		return reject(reasonInvalidTarget)
	}

	target := g.definitions[index].Author
	if target == connID {
		return reject("cannot vote for your own definition")
	}

	g.votes[connID] = target
	voter.Vote = target

	if g.allVoted() {
		g.resolveVotes()
	}

	return accept()
}

func (g *Bluff) allVoted() bool {
	return len(g.votes) >= len(g.players)
}

// resolveVotes scores the round: finding the real definition pays 2, every
// vote your decoy attracts pays 1.
func (g *Bluff) resolveVotes() {
	for voterID, targetID := range g.votes {
		if targetID == realAuthor {
			g.players[voterID].Score += 2
		} else if fooled, ok := g.players[targetID]; ok {
			fooled.Score++
		}
	}
	g.phase = bluffRoundOver
}

func (g *Bluff) nextRound() Result {
	if g.phase != bluffRoundOver {
		return reject(reasonWrongPhase)
	}
	g.startNextRoundLocked()
	return accept()
}

type bluffState struct {
	Phase       string                  `json:"phase"`
	Players     map[string]*bluffPlayer `json:"players"`
	CurrentWord string                  `json:"current_word,omitempty"`
	Definitions []bluffDefinition       `json:"definitions,omitempty"`
	Round       int                     `json:"round"`
	RoundsLeft  int                     `json:"rounds_left"`
}

func (g *Bluff) snapshotLocked() bluffState {
	revealed := g.phase == bluffRoundOver || g.phase == bluffGameOver

	players := make(map[string]*bluffPlayer, len(g.players))
	for id, p := range g.players {
		safe := &bluffPlayer{
			ConnID:       p.ConnID,
			Score:        p.Score,
			HasSubmitted: p.HasSubmitted,
		}
		if revealed {
			safe.Definition = p.Definition
			safe.Vote = p.Vote
		} else if p.Vote != "" {
			safe.Vote = "VOTED"
		}
		players[id] = safe
	}

	// During voting the lineup is visible but authorship is not.
	var defs []bluffDefinition
	if g.phase == bluffVoting || revealed {
		defs = make([]bluffDefinition, len(g.definitions))
		for i, d := range g.definitions {
			defs[i] = bluffDefinition{Text: d.Text}
			if revealed {
				defs[i].Author = d.Author
			}
		}
	}

	return bluffState{
		Phase:       g.phase,
		Players:     players,
		CurrentWord: g.currentWord,
		Definitions: defs,
		Round:       g.round,
		RoundsLeft:  len(g.queue),
	}
}

func (g *Bluff) Snapshot() any {
	return g.snapshotLocked()
}
