/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// Imposter phases.
const (
	imposterLobby     = "LOBBY"
	imposterLoading   = "LOADING"
	imposterPlaying   = "PLAYING"
	imposterGuessing  = "GUESSING"
	imposterRoundOver = "ROUND_OVER"
	imposterGameOver  = "GAME_OVER"
)

const (
	roleCivilian = "civilian"
	roleImposter = "imposter"
)

// Round outcomes.
const (
	resultImposterCaught   = "IMPOSTER_CAUGHT"
	resultImposterSurvived = "IMPOSTER_WON_SURVIVED"
	resultImposterBonus    = "IMPOSTER_WON_BONUS"
	resultImposterLeft     = "IMPOSTER_LEFT"
)

var imposterCategories = []string{
	"Foods", "Animals", "Famous movies", "Sports",
	"Professions", "Music Instruments", "Countries", "Famous people",
}

type imposterPlayer struct {
	ConnID string `json:"conn_id"`
	Role   string `json:"role,omitempty"`
	Vote   string `json:"vote,omitempty"`
	Score  int    `json:"score"`
}

// Imposter is the hidden-role word variant: everyone but one player knows
// the secret word; voting tries to find the odd one out, who then gets a
// chance to guess the word from decoys.
type Imposter struct {
	cfg    *Config
	roomID string
	sender Sender
	mu     sync.Locker
	gen    Generator

	phase      string
	players    map[string]*imposterPlayer
	category   string
	queue      []WordRound
	secretWord string
	decoys     []string
	imposterID string
	votes      map[string]string
	round      int
	lastResult string
	closed     bool
}

func newImposter(cfg *Config, roomID string, sender Sender, mu sync.Locker, gen Generator) *Imposter {
	return &Imposter{
		cfg:      cfg,
		roomID:   roomID,
		sender:   sender,
		mu:       mu,
		gen:      gen,
		phase:    imposterLobby,
		players:  make(map[string]*imposterPlayer),
		category: imposterCategories[0],
		votes:    make(map[string]string),
	}
}

func (g *Imposter) Admit(connID string) string {
	g.players[connID] = &imposterPlayer{ConnID: connID}
	return ""
}

func (g *Imposter) Migrate(oldID, newID string) {
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
	if g.imposterID == oldID {
		g.imposterID = newID
	}

	// A mid-round rejoin needs its private knowledge back.
	if g.phase == imposterPlaying || g.phase == imposterGuessing {
		g.sendPrivateRole(p)
	}
}

func (g *Imposter) Remove(connID string) {
	wasImposter := connID == g.imposterID

	delete(g.players, connID)
	delete(g.votes, connID)

	if (g.phase == imposterPlaying || g.phase == imposterGuessing) && wasImposter {
		g.endRound(resultImposterLeft)
		return
	}

	// The departure may have completed the vote.
	if g.phase == imposterPlaying && len(g.players) > 0 && g.allVoted() {
		g.resolveVotes()
	}
}

func (g *Imposter) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *Imposter) Apply(act *Action, connID string) Result {
	switch act.Type {
	case "START_GAME":
		return g.startGame()
	case "NEXT_ROUND":
		return g.nextRound()
	case "VOTE":
		return g.vote(connID, act.TargetID)
	case "IMPOSTER_GUESS":
		return g.imposterGuess(connID, act.Word)
	case "SET_CATEGORY":
		return g.setCategory(act.Category)
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *Imposter) setCategory(category string) Result {
	if !slices.Contains(imposterCategories, category) {
		return reject("unknown category")
	}
	g.category = category
	return accept()
}

func (g *Imposter) startGame() Result {
	if g.phase != imposterLobby && g.phase != imposterGameOver {
		return reject(reasonWrongPhase)
	}
	if len(g.players) < 3 {
		return reject("need at least 3 players")
	}

	for _, p := range g.players {
		p.Score = 0
	}
	g.queue = nil
	g.round = 0
	g.phase = imposterLoading

	go func() {
		rounds := loadWordRounds(g.cfg, g.gen, g.category)

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.closed || g.phase != imposterLoading {
			return
		}
		g.queue = rounds
		g.startNextRoundLocked()
		g.sender.Broadcast(g.roomID, "game_update", g.snapshotLocked())
	}()

	return accept()
}

// startNextRoundLocked assumes the room lock is held.
func (g *Imposter) startNextRoundLocked() {
	if len(g.queue) == 0 {
		g.phase = imposterGameOver
		return
	}

	next := g.queue[0]
	g.queue = g.queue[1:]
	g.secretWord = next.Word
	g.decoys = next.Decoys

	g.phase = imposterPlaying
	g.round++
	g.votes = make(map[string]string)

	ids := make([]string, 0, len(g.players))
	for id, p := range g.players {
		p.Vote = ""
		p.Role = roleCivilian
		ids = append(ids, id)
	}
	g.imposterID = ids[rand.IntN(len(ids))]
	g.players[g.imposterID].Role = roleImposter

	for _, p := range g.players {
		g.sendPrivateRole(p)
	}
}

// sendPrivateRole tells one player what they are allowed to know this
// round: civilians get the secret word, the imposter only learns they are
// the imposter.
func (g *Imposter) sendPrivateRole(p *imposterPlayer) {
	payload := map[string]string{"role": p.Role}
	if p.Role == roleCivilian {
		payload["word"] = g.secretWord
	}
	g.sender.Send(p.ConnID, "imposter:role", payload)
}

func (g *Imposter) vote(voterID, targetID string) Result {
	if g.phase != imposterPlaying {
		return reject(reasonWrongPhase)
	}
	voter, ok := g.players[voterID]
	if !ok {
		return reject(reasonNotAuthorized)
	}
	if _, voted := g.votes[voterID]; voted {
		return reject("already voted")
	}
	if voterID == targetID {
		return reject("cannot vote for yourself")
	}
	if _, ok := g.players[targetID]; !ok {
		return reject(reasonInvalidTarget)
	}

	g.votes[voterID] = targetID
	voter.Vote = targetID

	if g.allVoted() {
		g.resolveVotes()
	}
	return accept()
}

func (g *Imposter) allVoted() bool {
	for id := range g.players {
		if _, ok := g.votes[id]; !ok {
			return false
		}
	}
	return true
}

// resolveVotes convicts only a unique top candidate. Any tie lets the
// imposter survive into the guessing phase.
func (g *Imposter) resolveVotes() {
	counts := make(map[string]int)
	for _, target := range g.votes {
		counts[target]++
	}

	top, topCount, unique := "", 0, false
	for id, count := range counts {
		switch {
		case count > topCount:
			top, topCount, unique = id, count, true
		case count == topCount:
			unique = false
		}
	}

	if unique && top == g.imposterID {
		for _, p := range g.players {
			if p.Role != roleImposter {
				p.Score++
			}
		}
		g.endRound(resultImposterCaught)
		return
	}

	g.phase = imposterGuessing
	g.sender.Send(g.imposterID, "imposter:choices", g.guessChoices())
}

// guessChoices is the secret word mixed among its decoys.
func (g *Imposter) guessChoices() []string {
	choices := make([]string, 0, len(g.decoys)+1)
	choices = append(choices, g.secretWord)
	choices = append(choices, g.decoys...)
	shuffle(choices)
	return choices
}

func (g *Imposter) imposterGuess(connID, word string) Result {
	if g.phase != imposterGuessing {
		return reject(reasonWrongPhase)
	}
	if connID != g.imposterID {
		return reject(reasonNotAuthorized)
	}

	imposter := g.players[g.imposterID]
	imposter.Score++ // surviving the vote always pays
	if word == g.secretWord {
		imposter.Score++
		g.endRound(resultImposterBonus)
		return accept()
	}

	g.endRound(resultImposterSurvived)
	return accept()
}

func (g *Imposter) endRound(reason string) {
	g.phase = imposterRoundOver
	g.lastResult = reason
}

func (g *Imposter) nextRound() Result {
	if g.phase != imposterRoundOver {
		return reject(reasonWrongPhase)
	}
	g.startNextRoundLocked()
	return accept()
}

type imposterState struct {
	Phase      string                     `json:"phase"`
	Players    map[string]*imposterPlayer `json:"players"`
	Categories []string                   `json:"categories"`
	Category   string                     `json:"category"`
	SecretWord string                     `json:"secret_word,omitempty"`
	Decoys     []string                   `json:"decoys,omitempty"`
	ImposterID string                     `json:"imposter_id,omitempty"`
	LastResult string                     `json:"last_result,omitempty"`
	Round      int                        `json:"round"`
	RoundsLeft int                        `json:"rounds_left"`
}

func (g *Imposter) snapshotLocked() imposterState {
	revealed := g.phase == imposterRoundOver || g.phase == imposterGameOver

	players := make(map[string]*imposterPlayer, len(g.players))
	for id, p := range g.players {
		safe := &imposterPlayer{ConnID: p.ConnID, Score: p.Score}
		if revealed {
			safe.Role = p.Role
			safe.Vote = p.Vote
		} else if p.Vote != "" {
			safe.Vote = "VOTED"
		}
		players[id] = safe
	}

	state := imposterState{
		Phase:      g.phase,
		Players:    players,
		Categories: imposterCategories,
		Category:   g.category,
		LastResult: g.lastResult,
		Round:      g.round,
		RoundsLeft: len(g.queue),
	}
	if revealed {
		state.SecretWord = g.secretWord
		state.Decoys = g.decoys
		state.ImposterID = g.imposterID
	}
	return state
}

func (g *Imposter) Snapshot() any {
	return g.snapshotLocked()
}
