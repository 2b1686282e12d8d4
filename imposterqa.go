/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"sync"
)

// ImposterQA phases. The extra INPUT phase collects written answers
// before the discussion opens.
const (
	qaLobby     = "LOBBY"
	qaLoading   = "LOADING"
	qaInput     = "INPUT"
	qaPlaying   = "PLAYING"
	qaGuessing  = "GUESSING"
	qaRoundOver = "ROUND_OVER"
	qaGameOver  = "GAME_OVER"
)

type qaPlayer struct {
	ConnID string `json:"conn_id"`
	Role   string `json:"role,omitempty"`
	Answer string `json:"answer,omitempty"`
	Vote   string `json:"vote,omitempty"`
	Score  int    `json:"score"`
}

// ImposterQA is the question-and-answer take on the imposter game:
// everyone answers what they believe is the same question, but one player
// was quietly asked a different one.
type ImposterQA struct {
	cfg    *Config
	roomID string
	sender Sender
	mu     sync.Locker
	gen    Generator

	phase      string
	players    map[string]*qaPlayer
	queue      []QuestionRound
	mainQ      string
	oddQ       string
	decoys     []string
	imposterID string
	votes      map[string]string
	round      int
	lastResult string
	closed     bool
}

func newImposterQA(cfg *Config, roomID string, sender Sender, mu sync.Locker, gen Generator) *ImposterQA {
	return &ImposterQA{
		cfg:     cfg,
		roomID:  roomID,
		sender:  sender,
		mu:      mu,
		gen:     gen,
		phase:   qaLobby,
		players: make(map[string]*qaPlayer),
		votes:   make(map[string]string),
	}
}

func (g *ImposterQA) Admit(connID string) string {
	g.players[connID] = &qaPlayer{ConnID: connID}
	return ""
}

func (g *ImposterQA) Migrate(oldID, newID string) {
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

	if g.phase == qaInput || g.phase == qaPlaying || g.phase == qaGuessing {
		g.sendPrivateQuestion(p)
	}
}

func (g *ImposterQA) Remove(connID string) {
	wasImposter := connID == g.imposterID

	delete(g.players, connID)
	delete(g.votes, connID)

	live := g.phase == qaInput || g.phase == qaPlaying || g.phase == qaGuessing
	if live && wasImposter {
		g.endRound(resultImposterLeft)
		return
	}
	if len(g.players) == 0 {
		return
	}

	switch g.phase {
	case qaInput:
		if g.allAnswered() {
			g.phase = qaPlaying
		}
	case qaPlaying:
		if g.allVoted() {
			g.resolveVotes()
		}
	}
}

func (g *ImposterQA) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *ImposterQA) Apply(act *Action, connID string) Result {
	switch act.Type {
	case "START_GAME":
		return g.startGame()
	case "NEXT_ROUND":
		return g.nextRound()
	case "SUBMIT_ANSWER":
		return g.submitAnswer(connID, act.Answer)
	case "VOTE":
		return g.vote(connID, act.TargetID)
	case "IMPOSTER_GUESS":
		return g.imposterGuess(connID, act.Question)
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *ImposterQA) startGame() Result {
	if g.phase != qaLobby && g.phase != qaGameOver {
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
	g.phase = qaLoading

	go func() {
		rounds := loadQuestionRounds(g.cfg, g.gen, "")

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.closed || g.phase != qaLoading {
			return
		}
		g.queue = rounds
		g.startNextRoundLocked()
		g.sender.Broadcast(g.roomID, "game_update", g.snapshotLocked())
	}()

	return accept()
}

// startNextRoundLocked assumes the room lock is held.
func (g *ImposterQA) startNextRoundLocked() {
	if len(g.queue) == 0 {
		g.phase = qaGameOver
		return
	}

	next := g.queue[0]
	g.queue = g.queue[1:]
	g.mainQ = next.MainQ
	g.oddQ = next.OddQ
	g.decoys = next.Decoys

	g.phase = qaInput
	g.round++
	g.votes = make(map[string]string)

	ids := make([]string, 0, len(g.players))
	for id, p := range g.players {
		p.Answer = ""
		p.Vote = ""
		p.Role = roleCivilian
		ids = append(ids, id)
	}
	g.imposterID = ids[rand.IntN(len(ids))]
	g.players[g.imposterID].Role = roleImposter

	for _, p := range g.players {
		g.sendPrivateQuestion(p)
	}
}

// sendPrivateQuestion delivers each player their question for the round.
// Neither side learns which question the other was asked.
func (g *ImposterQA) sendPrivateQuestion(p *qaPlayer) {
	question := g.mainQ
	if p.Role == roleImposter {
		question = g.oddQ
	}
	g.sender.Send(p.ConnID, "imposter:question", map[string]string{"question": question})
}

func (g *ImposterQA) submitAnswer(connID, answer string) Result {
	if g.phase != qaInput {
		return reject(reasonWrongPhase)
	}
	p, ok := g.players[connID]
	if !ok {
		return reject(reasonNotAuthorized)
	}
	if answer == "" {
		return reject("empty answer")
	}
	p.Answer = answer

	if g.allAnswered() {
		g.phase = qaPlaying
	}
	return accept()
}

func (g *ImposterQA) allAnswered() bool {
	for _, p := range g.players {
		if p.Answer == "" {
			return false
		}
	}
	return true
}

func (g *ImposterQA) vote(voterID, targetID string) Result {
	if g.phase != qaPlaying {
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

func (g *ImposterQA) allVoted() bool {
	for id := range g.players {
		if _, ok := g.votes[id]; !ok {
			return false
		}
	}
	return true
}

// resolveVotes convicts only a unique top candidate, same rule as the
// word variant.
func (g *ImposterQA) resolveVotes() {
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

	g.phase = qaGuessing
	g.sender.Send(g.imposterID, "imposter:choices", g.guessChoices())
}

// guessChoices mixes the real question among the decoys; the imposter wins
// the bonus by spotting what everyone else was actually asked.
func (g *ImposterQA) guessChoices() []string {
	choices := make([]string, 0, len(g.decoys)+1)
	choices = append(choices, g.mainQ)
	choices = append(choices, g.decoys...)
	shuffle(choices)
	return choices
}

func (g *ImposterQA) imposterGuess(connID, question string) Result {
	if g.phase != qaGuessing {
		return reject(reasonWrongPhase)
	}
	if connID != g.imposterID {
		return reject(reasonNotAuthorized)
	}

	imposter := g.players[g.imposterID]
	imposter.Score++
	if question == g.mainQ {
		imposter.Score++
		g.endRound(resultImposterBonus)
		return accept()
	}

	g.endRound(resultImposterSurvived)
	return accept()
}

func (g *ImposterQA) endRound(reason string) {
	g.phase = qaRoundOver
	g.lastResult = reason
}

func (g *ImposterQA) nextRound() Result {
	if g.phase != qaRoundOver {
		return reject(reasonWrongPhase)
	}
	g.startNextRoundLocked()
	return accept()
}

type qaState struct {
	Phase        string               `json:"phase"`
	Players      map[string]*qaPlayer `json:"players"`
	MainQuestion string               `json:"main_question,omitempty"`
	OddQuestion  string               `json:"odd_question,omitempty"`
	ImposterID   string               `json:"imposter_id,omitempty"`
	LastResult   string               `json:"last_result,omitempty"`
	Round        int                  `json:"round"`
	RoundsLeft   int                  `json:"rounds_left"`
}

func (g *ImposterQA) snapshotLocked() qaState {
	revealed := g.phase == qaRoundOver || g.phase == qaGameOver

	players := make(map[string]*qaPlayer, len(g.players))
	for id, p := range g.players {
		safe := &qaPlayer{ConnID: p.ConnID, Score: p.Score}
		switch {
		case revealed:
			safe.Role = p.Role
			safe.Answer = p.Answer
			safe.Vote = p.Vote
		default:
			// Written answers stay hidden until everyone has one in,
			// so nobody can anchor on an early reveal.
			if g.phase != qaInput {
				safe.Answer = p.Answer
			} else if p.Answer != "" {
				safe.Answer = "SUBMITTED"
			}
			if p.Vote != "" {
				safe.Vote = "VOTED"
			}
		}
		players[id] = safe
	}

	state := qaState{
		Phase:      g.phase,
		Players:    players,
		LastResult: g.lastResult,
		Round:      g.round,
		RoundsLeft: len(g.queue),
	}
	if revealed {
		state.MainQuestion = g.mainQ
		state.OddQuestion = g.oddQ
		state.ImposterID = g.imposterID
	}
	return state
}

func (g *ImposterQA) Snapshot() any {
	return g.snapshotLocked()
}
