/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"
)

// Relay phases.
const (
	relayInput     = "INPUT_COLLECTION"
	relayTeams     = "TEAM_ASSIGNMENT"
	relayPlaying   = "PLAYING"
	relayRoundOver = "ROUND_OVER"
	relayGameOver  = "GAME_OVER"
)

type relayPlayer struct {
	ConnID    string `json:"conn_id"`
	Submitted bool   `json:"submitted"`
}

// Relay is the team word-relay variant: players submit words into a shared
// pool, then teams take timed turns describing them. The countdown is the
// only timer in the system that mutates game state; its ticks take the same
// room lock as player actions.
type Relay struct {
	cfg    *Config
	roomID string
	sender Sender
	mu     sync.Locker // the owning room's lock

	phase   string
	players map[string]*relayPlayer
	words   []string // full pool, survives across rounds
	pool    []string // items remaining in the current round
	teams   [][]string
	scores  []int
	round   int

	currentTeam int
	turnIdx     []int // per-team pointer to the next describer
	currentWord string
	turnActive  bool
	timeLeft    int
	turnSeq     int // bumped on every turn end so stale tickers exit
	closed      bool
}

func newRelay(cfg *Config, roomID string, sender Sender, mu sync.Locker) *Relay {
	return &Relay{
		cfg:     cfg,
		roomID:  roomID,
		sender:  sender,
		mu:      mu,
		phase:   relayInput,
		players: make(map[string]*relayPlayer),
		teams:   make([][]string, 2),
		scores:  make([]int, 2),
		turnIdx: make([]int, 2),
		round:   1,
	}
}

func (g *Relay) Admit(connID string) string {
	g.players[connID] = &relayPlayer{ConnID: connID}

	smallest := 0
	for i, team := range g.teams {
		if len(team) < len(g.teams[smallest]) {
			smallest = i
		}
	}
	g.teams[smallest] = append(g.teams[smallest], connID)
	return ""
}

func (g *Relay) Migrate(oldID, newID string) {
	if oldID == newID {
		return
	}
	if p, ok := g.players[oldID]; ok {
		p.ConnID = newID
		g.players[newID] = p
		delete(g.players, oldID)
	}
	for _, team := range g.teams {
		for i, id := range team {
			if id == oldID {
				team[i] = newID
			}
		}
	}
}

func (g *Relay) Remove(connID string) {
	wasDescriber := g.turnActive && g.currentDescriber() == connID

	delete(g.players, connID)
	for i, team := range g.teams {
		dst := team[:0]
		for _, id := range team {
			if id != connID {
				dst = append(dst, id)
			}
		}
		g.teams[i] = dst
	}

	if wasDescriber {
		g.endTurn()
	}
}

// Close detaches any running countdown. Called once when the room dies.
func (g *Relay) Close() {
	g.mu.Lock()
	g.closed = true
	g.turnActive = false
	g.turnSeq++
	g.mu.Unlock()
}

func (g *Relay) Apply(act *Action, connID string) Result {
	switch act.Type {
	case "SUBMIT_WORDS":
		return g.submitWords(connID, act.Words)
	case "FINISH_INPUT":
		return g.finishInput()
	case "SET_TEAMS_COUNT":
		return g.setTeamsCount(act.Count)
	case "MOVE_PLAYER":
		return g.movePlayer(act.TargetID, act.TargetTeam)
	case "START_GAME":
		return g.startGame()
	case "START_TURN":
		return g.startTurn(connID)
	case "GUESS_WORD":
		return g.guessWord(connID)
	case "SKIP_WORD":
		return g.skipWord(connID)
	case "NEXT_ROUND":
		return g.nextRound()
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *Relay) submitWords(connID string, words []string) Result {
	if g.phase != relayInput {
		return reject(reasonWrongPhase)
	}
	if len(words) == 0 {
		return reject("no words submitted")
	}
	p, ok := g.players[connID]
	if !ok {
		return reject(reasonNotAuthorized)
	}

	p.Submitted = true
	g.words = append(g.words, words...)
	return accept()
}

func (g *Relay) finishInput() Result {
	if g.phase != relayInput {
		return reject(reasonWrongPhase)
	}
	g.phase = relayTeams
	return accept()
}

func (g *Relay) setTeamsCount(count int) Result {
	if g.phase != relayInput && g.phase != relayTeams {
		return reject(reasonWrongPhase)
	}
	if count < 2 || count > 4 {
		return reject("team count must be between 2 and 4")
	}

	var all []string
	for _, team := range g.teams {
		all = append(all, team...)
	}

	g.teams = make([][]string, count)
	g.scores = make([]int, count)
	g.turnIdx = make([]int, count)
	for i, id := range all {
		g.teams[i%count] = append(g.teams[i%count], id)
	}
	return accept()
}

func (g *Relay) movePlayer(connID string, targetTeam int) Result {
	if g.phase != relayInput && g.phase != relayTeams {
		return reject(reasonWrongPhase)
	}
	if targetTeam < 0 || targetTeam >= len(g.teams) {
		return reject(reasonInvalidTarget)
	}
	if _, ok := g.players[connID]; !ok {
		return reject(reasonInvalidTarget)
	}

	for i, team := range g.teams {
		dst := team[:0]
		for _, id := range team {
			if id != connID {
				dst = append(dst, id)
			}
		}
		g.teams[i] = dst
	}
	g.teams[targetTeam] = append(g.teams[targetTeam], connID)
	return accept()
}

func (g *Relay) startGame() Result {
	if g.phase != relayInput && g.phase != relayTeams {
		return reject(reasonWrongPhase)
	}
	if len(g.words) == 0 {
		return reject("no words submitted")
	}

	g.phase = relayPlaying
	g.round = 1
	g.resetPool()
	g.currentTeam = 0
	return accept()
}

func (g *Relay) resetPool() {
	g.pool = make([]string, len(g.words))
	copy(g.pool, g.words)
	shuffle(g.pool)
}

func (g *Relay) currentDescriber() string {
	team := g.teams[g.currentTeam]
	if len(team) == 0 {
		return ""
	}
	return team[g.turnIdx[g.currentTeam]%len(team)]
}

func (g *Relay) startTurn(connID string) Result {
	if g.phase != relayPlaying {
		return reject(reasonWrongPhase)
	}
	if g.turnActive {
		return reject("a turn is already running")
	}
	if connID != g.currentDescriber() {
		return reject(reasonNotYourTurn)
	}
	if len(g.pool) == 0 {
		return reject("no words left this round")
	}

	g.turnActive = true
	g.timeLeft = g.cfg.turnSeconds
	g.drawNext()

	seq := g.turnSeq
	go g.runCountdown(seq)

	return accept()
}

// runCountdown ticks once per second, broadcasting each tick, and ends the
// turn on expiry. It exits as soon as the turn it was started for is over.
func (g *Relay) runCountdown(seq int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		g.mu.Lock()
		if g.closed || !g.turnActive || g.turnSeq != seq {
			g.mu.Unlock()
			return
		}

		g.timeLeft--
		if g.timeLeft <= 0 {
			g.endTurn()
			g.sender.Broadcast(g.roomID, "game_update", g.snapshotLocked())
			g.mu.Unlock()
			return
		}

		g.sender.Broadcast(g.roomID, "relay:timer_tick", g.timeLeft)
		g.mu.Unlock()
	}
}

// drawNext pulls the next item from the pool, handling exhaustion: the
// round ends, and either the next round begins on NEXT_ROUND or the game
// is over.
func (g *Relay) drawNext() {
	if len(g.pool) == 0 {
		g.endRound()
		return
	}
	g.currentWord = g.pool[0]
	g.pool = g.pool[1:]
}

func (g *Relay) guessWord(connID string) Result {
	if g.phase != relayPlaying || !g.turnActive {
		return reject(reasonWrongPhase)
	}
	if connID != g.currentDescriber() {
		return reject(reasonNotYourTurn)
	}

	g.scores[g.currentTeam]++
	g.drawNext()
	return accept()
}

func (g *Relay) skipWord(connID string) Result {
	if g.phase != relayPlaying || !g.turnActive || g.currentWord == "" {
		return reject(reasonWrongPhase)
	}
	if connID != g.currentDescriber() {
		return reject(reasonNotYourTurn)
	}

	g.pool = append(g.pool, g.currentWord)
	g.currentWord = ""
	g.drawNext()
	return accept()
}

// endTurn stops the countdown, returns any undiscarded item to the pool,
// and advances turn order to the next player on the next team.
func (g *Relay) endTurn() {
	g.turnActive = false
	g.turnSeq++

	if g.currentWord != "" {
		g.pool = append(g.pool, g.currentWord)
		g.currentWord = ""
	}

	g.advanceTeam()
}

// advanceTeam rotates to the next team that still has members, bumping
// that team's turn pointer. Teams emptied by removals are skipped.
func (g *Relay) advanceTeam() {
	for range g.teams {
		g.currentTeam = (g.currentTeam + 1) % len(g.teams)
		if size := len(g.teams[g.currentTeam]); size > 0 {
			g.turnIdx[g.currentTeam] = (g.turnIdx[g.currentTeam] + 1) % size
			return
		}
	}
}

// endRound fires when the pool is exhausted mid-turn.
func (g *Relay) endRound() {
	g.turnActive = false
	g.turnSeq++
	g.currentWord = ""

	if g.round >= g.cfg.relayRounds {
		g.phase = relayGameOver
		return
	}
	g.phase = relayRoundOver
}

func (g *Relay) nextRound() Result {
	if g.phase != relayRoundOver {
		return reject(reasonWrongPhase)
	}

	g.round++
	g.phase = relayPlaying
	g.resetPool()

	g.advanceTeam()

	g.sender.Broadcast(g.roomID, "relay:round_change", map[string]int{"round": g.round})
	return accept()
}

type relayState struct {
	Phase       string                  `json:"phase"`
	Players     map[string]*relayPlayer `json:"players"`
	Teams       [][]string              `json:"teams"`
	Scores      []int                   `json:"scores"`
	Round       int                     `json:"round"`
	MaxRounds   int                     `json:"max_rounds"`
	TurnActive  bool                    `json:"turn_active"`
	CurrentTeam int                     `json:"current_team"`
	Describer   string                  `json:"describer,omitempty"`
	CurrentWord string                  `json:"current_word,omitempty"`
	TimeLeft    int                     `json:"time_left"`
	WordsCount  int                     `json:"words_count"`
	PoolLeft    int                     `json:"pool_left"`
}

func (g *Relay) snapshotLocked() relayState {
	word := ""
	if g.turnActive {
		word = g.currentWord
	}
	return relayState{
		Phase:       g.phase,
		Players:     g.players,
		Teams:       g.teams,
		Scores:      g.scores,
		Round:       g.round,
		MaxRounds:   g.cfg.relayRounds,
		TurnActive:  g.turnActive,
		CurrentTeam: g.currentTeam,
		Describer:   g.currentDescriber(),
		CurrentWord: word,
		TimeLeft:    g.timeLeft,
		WordsCount:  len(g.words),
		PoolLeft:    len(g.pool),
	}
}

func (g *Relay) Snapshot() any {
	return g.snapshotLocked()
}
