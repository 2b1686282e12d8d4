/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
)

// Cabal phases.
const (
	cabalLobby      = "LOBBY"
	cabalRoleReveal = "ROLE_REVEAL"
	cabalNomination = "NOMINATION"
	cabalVoting     = "VOTING"
	cabalFirstDraw  = "LEGISLATIVE_FIRST"
	cabalSecondDraw = "LEGISLATIVE_SECOND"
	cabalVetoWait   = "VETO_REQUESTED"
	cabalExecutive  = "EXECUTIVE_ACTION"
	cabalGameOver   = "GAME_OVER"
)

// Roles and parties.
const (
	roleMastermind  = "MASTERMIND"
	roleConspirator = "CONSPIRATOR"
	roleLoyalist    = "LOYALIST"

	partyLoyalist   = "LOYALIST"
	partyConspiracy = "CONSPIRACY"
)

// Policy cards.
const (
	cardLoyalist   = "LOYALIST"
	cardConspiracy = "CONSPIRACY"
)

// Executive powers.
const (
	powerInvestigate     = "INVESTIGATE"
	powerSpecialElection = "SPECIAL_ELECTION"
	powerPeek            = "PEEK"
	powerExecution       = "EXECUTION"
)

const (
	voteYes = "yes"
	voteNo  = "no"
)

// Win thresholds and deck composition.
const (
	loyalistWinTrack   = 5
	conspiracyWinTrack = 6
	deckLoyalistCards  = 6
	deckConspiracyCard = 11
)

type cabalPlayer struct {
	ConnID       string `json:"conn_id"`
	Username     string `json:"username"`
	Alive        bool   `json:"alive"`
	Investigated bool   `json:"investigated"`

	role  string
	party string
}

// Cabal is the multi-phase hidden-role legislative game. Seats are fixed at
// game start; the director rotates through living seats, nominates a
// minister, and the pair passes policy cards whose enactments unlock
// executive powers.
type Cabal struct {
	roomID string
	sender Sender

	phase   string
	players []*cabalPlayer

	deck    []string
	discard []string

	loyalistTrack   int
	conspiracyTrack int
	tracker         int

	directorIdx    int
	directorID     string
	ministerID     string
	nomineeID      string
	lastDirectorID string
	lastMinisterID string

	votes     map[string]string
	lastVotes map[string]string

	hand         []string
	pendingPower string
	vetoUsed     bool

	winner    string
	winReason string
}

func newCabal(roomID string, sender Sender) *Cabal {
	return &Cabal{
		roomID:    roomID,
		sender:    sender,
		phase:     cabalLobby,
		votes:     make(map[string]string),
		lastVotes: make(map[string]string),
	}
}

// Admit is a no-op before the game starts: seats are taken from the room
// roster at START_GAME, so lobby churn never touches game state.
func (g *Cabal) Admit(connID string) string {
	return ""
}

func (g *Cabal) Migrate(oldID, newID string) {
	if oldID == newID {
		return
	}
	p := g.findPlayer(oldID)
	if p == nil {
		return
	}
	p.ConnID = newID

	rekey := func(id *string) {
		if *id == oldID {
			*id = newID
		}
	}
	rekey(&g.directorID)
	rekey(&g.ministerID)
	rekey(&g.nomineeID)
	rekey(&g.lastDirectorID)
	rekey(&g.lastMinisterID)

	for _, m := range []map[string]string{g.votes, g.lastVotes} {
		if v, ok := m[oldID]; ok {
			m[newID] = v
			delete(m, oldID)
		}
	}

	if g.phase == cabalLobby || g.phase == cabalGameOver {
		return
	}

	g.sendRole(p)
	switch {
	case g.phase == cabalFirstDraw && newID == g.directorID:
		g.sender.Send(newID, "cabal:hand", g.hand)
	case (g.phase == cabalSecondDraw || g.phase == cabalVetoWait) && newID == g.ministerID:
		g.sender.Send(newID, "cabal:hand", g.hand)
	}
}

func (g *Cabal) Remove(connID string) {
	p := g.findPlayer(connID)
	if p == nil || g.phase == cabalLobby || g.phase == cabalGameOver {
		return
	}

	if p.role == roleMastermind {
		g.endGame(partyLoyalist, "The mastermind abandoned the conspiracy.")
		return
	}

	p.Alive = false
	delete(g.votes, connID)

	// A sitting director or minister walking out strands the session:
	// abandon it and pass the government along.
	inSession := connID == g.directorID || connID == g.ministerID || connID == g.nomineeID
	if inSession {
		g.discard = append(g.discard, g.hand...)
		g.hand = nil
		g.pendingPower = ""
		g.advanceGovernment()
		return
	}

	if g.phase == cabalVoting && g.allVoted() {
		g.resolveVotes()
	}
}

func (g *Cabal) Apply(act *Action, connID string) Result {
	if act.Type == "START_GAME" {
		return g.startGame(act.roster)
	}

	p := g.findPlayer(connID)
	if p == nil {
		return reject(reasonNotAuthorized)
	}
	if !p.Alive {
		return reject("you are dead")
	}

	switch act.Type {
	case "END_ROLE_REVEAL":
		return g.endRoleReveal()
	case "NOMINATE":
		return g.nominate(connID, act.TargetID)
	case "VOTE":
		return g.vote(connID, act.Vote)
	case "DISCARD":
		return g.discardCard(connID, act.Index)
	case "VETO_REQUEST":
		return g.vetoRequest(connID)
	case "VETO_RESPONSE":
		return g.vetoResponse(connID, act.Approved)
	case "POWER":
		return g.executivePower(connID, act)
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *Cabal) findPlayer(connID string) *cabalPlayer {
	for _, p := range g.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (g *Cabal) alive() []*cabalPlayer {
	out := make([]*cabalPlayer, 0, len(g.players))
	for _, p := range g.players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// --- setup ---

func (g *Cabal) startGame(roster []Seat) Result {
	if g.phase != cabalLobby && g.phase != cabalGameOver {
		return reject(reasonWrongPhase)
	}
	if len(roster) < 5 || len(roster) > 10 {
		return reject("need 5 to 10 players")
	}

	g.players = make([]*cabalPlayer, 0, len(roster))
	for _, seat := range roster {
		g.players = append(g.players, &cabalPlayer{
			ConnID:   seat.ConnID,
			Username: seat.Username,
			Alive:    true,
		})
	}

	g.assignRoles()
	g.buildDeck()
	g.loyalistTrack = 0
	g.conspiracyTrack = 0
	g.tracker = 0
	g.vetoUsed = false
	g.hand = nil
	g.pendingPower = ""
	g.nomineeID = ""
	g.ministerID = ""
	g.lastDirectorID = ""
	g.lastMinisterID = ""
	g.votes = make(map[string]string)
	g.lastVotes = make(map[string]string)
	g.winner = ""
	g.winReason = ""

	g.directorIdx = rand.IntN(len(g.players))
	g.directorID = g.players[g.directorIdx].ConnID
	g.phase = cabalRoleReveal

	for _, p := range g.players {
		g.sendRole(p)
	}

	return accept()
}

// assignRoles deals one mastermind, a bracket-sized ring of conspirators,
// and loyalists for the rest: 5-6 players field one conspirator, 7-8 two,
// 9-10 three.
func (g *Cabal) assignRoles() {
	count := len(g.players)

	conspirators := 1
	switch {
	case count >= 9:
		conspirators = 3
	case count >= 7:
		conspirators = 2
	}

	roles := []string{roleMastermind}
	for range conspirators {
		roles = append(roles, roleConspirator)
	}
	for len(roles) < count {
		roles = append(roles, roleLoyalist)
	}
	shuffle(roles)

	for i, p := range g.players {
		p.role = roles[i]
		if p.role == roleLoyalist {
			p.party = partyLoyalist
		} else {
			p.party = partyConspiracy
		}
	}
}

func (g *Cabal) buildDeck() {
	g.deck = make([]string, 0, deckLoyalistCards+deckConspiracyCard)
	for range deckLoyalistCards {
		g.deck = append(g.deck, cardLoyalist)
	}
	for range deckConspiracyCard {
		g.deck = append(g.deck, cardConspiracy)
	}
	shuffle(g.deck)
	g.discard = nil
}

// reshuffle folds the discard pile back into the deck. No card is ever
// created or lost: the pool stays at seventeen.
func (g *Cabal) reshuffle() {
	g.deck = append(g.deck, g.discard...)
	g.discard = nil
	shuffle(g.deck)
}

type cabalRoleInfo struct {
	Role              string   `json:"role"`
	Party             string   `json:"party"`
	KnownConspirators []string `json:"known_conspirators"`
	Mastermind        string   `json:"mastermind,omitempty"`
}

// sendRole tells one player what their side is allowed to know.
// Conspirators know each other and the mastermind; the mastermind learns
// the conspirator only in 5-6 player games; loyalists learn nothing.
func (g *Cabal) sendRole(p *cabalPlayer) {
	info := cabalRoleInfo{
		Role:              p.role,
		Party:             p.party,
		KnownConspirators: []string{},
	}

	smallGame := len(g.players) <= 6
	for _, other := range g.players {
		switch {
		case other.role == roleMastermind && p.role == roleConspirator:
			info.Mastermind = other.Username
		case other.role == roleConspirator && other.ConnID != p.ConnID:
			if p.role == roleConspirator || (p.role == roleMastermind && smallGame) {
				info.KnownConspirators = append(info.KnownConspirators, other.Username)
			}
		}
	}

	g.sender.Send(p.ConnID, "cabal:role", info)
}

// --- election ---

func (g *Cabal) endRoleReveal() Result {
	if g.phase != cabalRoleReveal {
		return reject(reasonWrongPhase)
	}
	g.phase = cabalNomination
	return accept()
}

func (g *Cabal) nominate(connID, targetID string) Result {
	if g.phase != cabalNomination {
		return reject(reasonWrongPhase)
	}
	if connID != g.directorID {
		return reject(reasonNotAuthorized)
	}

	target := g.findPlayer(targetID)
	switch {
	case target == nil || !target.Alive:
		return reject(reasonInvalidTarget)
	case targetID == connID:
		return reject("cannot nominate yourself")
	case targetID == g.lastMinisterID:
		return reject("term limited: served as minister last government")
	case targetID == g.lastDirectorID && len(g.alive()) > 5:
		return reject("term limited: served as director last government")
	}

	g.nomineeID = targetID
	g.votes = make(map[string]string)
	g.phase = cabalVoting
	return accept()
}

func (g *Cabal) vote(connID, vote string) Result {
	if g.phase != cabalVoting {
		return reject(reasonWrongPhase)
	}
	if vote != voteYes && vote != voteNo {
		return reject("vote must be yes or no")
	}
	if _, voted := g.votes[connID]; voted {
		return reject("already voted")
	}

	g.votes[connID] = vote
	if g.allVoted() {
		g.resolveVotes()
	}
	return accept()
}

func (g *Cabal) allVoted() bool {
	return len(g.votes) == len(g.alive())
}

func (g *Cabal) resolveVotes() {
	g.lastVotes = g.votes

	yes := 0
	for _, v := range g.votes {
		if v == voteYes {
			yes++
		}
	}

	if yes*2 <= len(g.votes) {
		g.failedElection()
		return
	}

	g.tracker = 0
	g.ministerID = g.nomineeID

	// Electing the mastermind minister once three conspiracy policies are
	// on the board hands the conspiracy the game.
	minister := g.findPlayer(g.ministerID)
	if g.conspiracyTrack >= 3 && minister.role == roleMastermind {
		g.endGame(partyConspiracy, "The mastermind was elected minister.")
		return
	}

	g.phase = cabalFirstDraw
	g.dealDirectorHand()
}

func (g *Cabal) failedElection() {
	g.tracker++
	if g.tracker == 3 {
		g.chaosEnact()
		return
	}
	g.advanceGovernment()
}

// chaosEnact plays the top card of the deck after three failed elections.
// No power triggers and no term limit is recorded for it.
func (g *Cabal) chaosEnact() {
	if len(g.deck) < 1 {
		g.reshuffle()
	}
	card := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]

	g.tracker = 0
	if g.enactCard(card) {
		return
	}
	g.advanceGovernment()
}

// advanceGovernment moves the rotation pointer to the next living seat and
// opens nomination. A special election leaves the pointer untouched, so
// rotation resumes where it left off once the special round ends.
func (g *Cabal) advanceGovernment() {
	g.nomineeID = ""
	g.ministerID = ""
	g.votes = make(map[string]string)

	next := (g.directorIdx + 1) % len(g.players)
	for !g.players[next].Alive {
		next = (next + 1) % len(g.players)
	}
	g.directorIdx = next
	g.directorID = g.players[next].ConnID

	g.phase = cabalNomination
}

// --- legislative ---

func (g *Cabal) dealDirectorHand() {
	g.vetoUsed = false
	if len(g.deck) < 3 {
		g.reshuffle()
	}
	n := len(g.deck)
	g.hand = []string{g.deck[n-1], g.deck[n-2], g.deck[n-3]}
	g.deck = g.deck[:n-3]

	g.sender.Send(g.directorID, "cabal:hand", g.hand)
}

func (g *Cabal) discardCard(connID string, index int) Result {
	switch g.phase {
	case cabalFirstDraw:
		if connID != g.directorID {
			return reject(reasonNotAuthorized)
		}
		if index < 0 || index >= len(g.hand) {
			return reject(reasonInvalidTarget)
		}

		g.discard = append(g.discard, g.hand[index])
		g.hand = append(g.hand[:index], g.hand[index+1:]...)

		g.phase = cabalSecondDraw
		g.sender.Send(g.ministerID, "cabal:hand", g.hand)
		return accept()

	case cabalSecondDraw:
		if connID != g.ministerID {
			return reject(reasonNotAuthorized)
		}
		if index < 0 || index >= len(g.hand) {
			return reject(reasonInvalidTarget)
		}

		g.discard = append(g.discard, g.hand[index])
		g.hand = append(g.hand[:index], g.hand[index+1:]...)

		enacted := g.hand[0]
		g.hand = nil
		if g.enactCard(enacted) {
			return accept()
		}

		if enacted == cardConspiracy {
			if power := g.executivePowerFor(g.conspiracyTrack); power != "" {
				g.pendingPower = power
				g.phase = cabalExecutive
				return accept()
			}
		}

		g.recordTermLimits()
		g.advanceGovernment()
		return accept()

	default:
		return reject(reasonWrongPhase)
	}
}

// enactCard places a card on its track and reports whether it ended the
// game.
func (g *Cabal) enactCard(card string) bool {
	if card == cardLoyalist {
		g.loyalistTrack++
		if g.loyalistTrack == loyalistWinTrack {
			g.endGame(partyLoyalist, "Five loyalist policies enacted.")
			return true
		}
		return false
	}

	g.conspiracyTrack++
	if g.conspiracyTrack == conspiracyWinTrack {
		g.endGame(partyConspiracy, "Six conspiracy policies enacted.")
		return true
	}
	return false
}

func (g *Cabal) recordTermLimits() {
	g.lastDirectorID = g.directorID
	g.lastMinisterID = g.ministerID
}

// --- veto ---

func (g *Cabal) vetoRequest(connID string) Result {
	if g.phase != cabalSecondDraw {
		return reject(reasonWrongPhase)
	}
	if connID != g.ministerID {
		return reject(reasonNotAuthorized)
	}
	if g.conspiracyTrack < 5 {
		return reject("veto power is not unlocked")
	}
	if g.vetoUsed {
		return reject("veto already requested this session")
	}

	g.vetoUsed = true
	g.phase = cabalVetoWait
	return accept()
}

func (g *Cabal) vetoResponse(connID string, approved bool) Result {
	if g.phase != cabalVetoWait {
		return reject(reasonWrongPhase)
	}
	if connID != g.directorID {
		return reject(reasonNotAuthorized)
	}

	if approved {
		// Both cards go to the discard pile and the session counts as a
		// failed election.
		g.discard = append(g.discard, g.hand...)
		g.hand = nil
		g.failedElection()
		return accept()
	}

	// Refused: the minister keeps the hand and must enact.
	g.phase = cabalSecondDraw
	g.sender.Send(g.ministerID, "cabal:hand", g.hand)
	return accept()
}

// --- executive powers ---

// executivePowerFor maps the conspiracy track position to a power for the
// seated player count. Dead players still count: the board is sized at
// game start.
func (g *Cabal) executivePowerFor(track int) string {
	count := len(g.players)

	switch track {
	case 1:
		if count >= 9 {
			return powerInvestigate
		}
	case 2:
		if count >= 7 {
			return powerInvestigate
		}
	case 3:
		if count <= 6 {
			return powerPeek
		}
		return powerSpecialElection
	case 4, 5:
		return powerExecution
	}
	return ""
}

func (g *Cabal) executivePower(connID string, act *Action) Result {
	if g.phase != cabalExecutive {
		return reject(reasonWrongPhase)
	}
	if connID != g.directorID {
		return reject(reasonNotAuthorized)
	}
	if act.Power != g.pendingPower {
		return reject("that power is not on the table")
	}

	switch g.pendingPower {
	case powerInvestigate:
		return g.investigate(act.TargetID)
	case powerSpecialElection:
		return g.specialElection(act.TargetID)
	case powerPeek:
		return g.peek(act.Confirm)
	case powerExecution:
		return g.execute(act.TargetID)
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *Cabal) investigate(targetID string) Result {
	target := g.findPlayer(targetID)
	if target == nil || target.Investigated {
		return reject(reasonInvalidTarget)
	}

	target.Investigated = true
	g.sender.Send(g.directorID, "cabal:investigation", map[string]string{
		"username": target.Username,
		"party":    target.party,
	})

	g.finishPower()
	return accept()
}

func (g *Cabal) specialElection(targetID string) Result {
	target := g.findPlayer(targetID)
	if target == nil || !target.Alive || targetID == g.directorID {
		return reject(reasonInvalidTarget)
	}

	g.recordTermLimits()
	g.pendingPower = ""

	// Override the chair without moving directorIdx: after the special
	// round, advanceGovernment resumes from the caller's seat.
	g.nomineeID = ""
	g.ministerID = ""
	g.votes = make(map[string]string)
	g.directorID = targetID
	g.phase = cabalNomination
	return accept()
}

func (g *Cabal) peek(confirm bool) Result {
	if confirm {
		g.finishPower()
		return accept()
	}

	if len(g.deck) < 3 {
		g.reshuffle()
	}
	n := len(g.deck)
	g.sender.Send(g.directorID, "cabal:peek", []string{g.deck[n-1], g.deck[n-2], g.deck[n-3]})
	return accept()
}

func (g *Cabal) execute(targetID string) Result {
	target := g.findPlayer(targetID)
	if target == nil || !target.Alive {
		return reject(reasonInvalidTarget)
	}

	target.Alive = false
	if target.role == roleMastermind {
		g.endGame(partyLoyalist, "The mastermind was executed.")
		return accept()
	}

	g.finishPower()
	return accept()
}

func (g *Cabal) finishPower() {
	g.pendingPower = ""
	g.recordTermLimits()
	g.advanceGovernment()
}

func (g *Cabal) endGame(winner, reason string) {
	g.winner = winner
	g.winReason = reason
	g.phase = cabalGameOver
}

// --- snapshot ---

type cabalSeat struct {
	ConnID       string `json:"conn_id"`
	Username     string `json:"username"`
	Alive        bool   `json:"alive"`
	Investigated bool   `json:"investigated"`
	IsDirector   bool   `json:"is_director"`
	IsMinister   bool   `json:"is_minister"`
	Voted        bool   `json:"voted"`
	Vote         string `json:"vote,omitempty"`
	Role         string `json:"role,omitempty"`
}

type cabalState struct {
	Phase           string            `json:"phase"`
	Players         []cabalSeat       `json:"players"`
	LoyalistTrack   int               `json:"loyalist_track"`
	ConspiracyTrack int               `json:"conspiracy_track"`
	ElectionTracker int               `json:"election_tracker"`
	DeckCount       int               `json:"deck_count"`
	DiscardCount    int               `json:"discard_count"`
	Nominee         string            `json:"nominee,omitempty"`
	LastVotes       map[string]string `json:"last_votes,omitempty"`
	PendingPower    string            `json:"pending_power,omitempty"`
	VetoUnlocked    bool              `json:"veto_unlocked"`
	Winner          string            `json:"winner,omitempty"`
	WinReason       string            `json:"win_reason,omitempty"`
}

func (g *Cabal) Snapshot() any {
	over := g.phase == cabalGameOver

	seats := make([]cabalSeat, 0, len(g.players))
	for _, p := range g.players {
		_, voted := g.votes[p.ConnID]
		seat := cabalSeat{
			ConnID:       p.ConnID,
			Username:     p.Username,
			Alive:        p.Alive,
			Investigated: p.Investigated,
			IsDirector:   p.ConnID == g.directorID,
			IsMinister:   p.ConnID == g.ministerID,
			Voted:        voted,
		}
		// Ballots stay secret until the election resolves.
		if g.phase != cabalVoting {
			seat.Vote = g.lastVotes[p.ConnID]
		}
		if over {
			seat.Role = p.role
		}
		seats = append(seats, seat)
	}

	var nominee string
	if n := g.findPlayer(g.nomineeID); n != nil {
		nominee = n.Username
	}

	state := cabalState{
		Phase:           g.phase,
		Players:         seats,
		LoyalistTrack:   g.loyalistTrack,
		ConspiracyTrack: g.conspiracyTrack,
		ElectionTracker: g.tracker,
		DeckCount:       len(g.deck),
		DiscardCount:    len(g.discard),
		Nominee:         nominee,
		PendingPower:    g.pendingPower,
		VetoUnlocked:    g.conspiracyTrack >= 5,
		Winner:          g.winner,
		WinReason:       g.winReason,
	}
	if g.phase != cabalVoting {
		state.LastVotes = g.lastVotes
	}
	return state
}
