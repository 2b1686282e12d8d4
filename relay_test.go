/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRelay(t *testing.T, players ...string) (*Relay, *fakeSender, *sync.Mutex) {
	t.Helper()

	sender := &fakeSender{}
	mu := &sync.Mutex{}
	g := newRelay(testConfig(), "ROOM", sender, mu)
	for _, id := range players {
		g.Admit(id)
	}
	return g, sender, mu
}

func TestRelayAdmitBalancesTeams(t *testing.T) {
	g, _, _ := setupRelay(t, "a", "b", "c", "d")

	assert.Len(t, g.teams[0], 2)
	assert.Len(t, g.teams[1], 2)
}

func TestRelayStartWithTwoWordSets(t *testing.T) {
	g, _, _ := setupRelay(t, "a", "b", "c", "d")

	five := []string{"one", "two", "three", "four", "five"}
	more := []string{"six", "seven", "eight", "nine", "ten"}
	require.True(t, g.Apply(&Action{Type: "SUBMIT_WORDS", Words: five}, "a").OK)
	require.True(t, g.Apply(&Action{Type: "SUBMIT_WORDS", Words: more}, "b").OK)

	require.True(t, g.Apply(&Action{Type: "START_GAME"}, "a").OK)

	state := g.Snapshot().(relayState)
	assert.Equal(t, relayPlaying, state.Phase)
	assert.Equal(t, 1, state.Round)
	assert.Equal(t, 10, state.PoolLeft)
}

func TestRelayStartNeedsWords(t *testing.T) {
	g, _, _ := setupRelay(t, "a", "b")

	res := g.Apply(&Action{Type: "START_GAME"}, "a")
	assert.False(t, res.OK)
}

func TestRelaySetTeamsCount(t *testing.T) {
	g, _, _ := setupRelay(t, "a", "b", "c", "d", "e", "f")

	res := g.Apply(&Action{Type: "SET_TEAMS_COUNT", Count: 5}, "a")
	assert.False(t, res.OK)

	require.True(t, g.Apply(&Action{Type: "SET_TEAMS_COUNT", Count: 3}, "a").OK)
	assert.Len(t, g.teams, 3)
	assert.Len(t, g.scores, 3)
	for _, team := range g.teams {
		assert.Len(t, team, 2)
	}
}

func TestRelayMovePlayer(t *testing.T) {
	g, _, _ := setupRelay(t, "a", "b", "c", "d")

	require.True(t, g.Apply(&Action{Type: "MOVE_PLAYER", TargetID: "a", TargetTeam: 1}, "a").OK)
	assert.Len(t, g.teams[0], 1)
	assert.Len(t, g.teams[1], 3)

	res := g.Apply(&Action{Type: "MOVE_PLAYER", TargetID: "a", TargetTeam: 7}, "a")
	assert.False(t, res.OK)
}

func startedRelay(t *testing.T) (*Relay, *fakeSender, *sync.Mutex) {
	t.Helper()

	g, sender, mu := setupRelay(t, "a", "b", "c", "d")
	words := []string{"one", "two", "three", "four", "five"}
	require.True(t, g.Apply(&Action{Type: "SUBMIT_WORDS", Words: words}, "a").OK)
	require.True(t, g.Apply(&Action{Type: "START_GAME"}, "a").OK)
	return g, sender, mu
}

func TestRelayTurnFlow(t *testing.T) {
	g, _, mu := startedRelay(t)

	describer := g.currentDescriber()
	var other string
	for id := range g.players {
		if id != describer {
			other = id
			break
		}
	}

	res := g.Apply(&Action{Type: "START_TURN"}, other)
	assert.False(t, res.OK)
	assert.Equal(t, reasonNotYourTurn, res.Reason)

	mu.Lock()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)
	assert.True(t, g.turnActive)
	assert.NotEmpty(t, g.currentWord)

	require.True(t, g.Apply(&Action{Type: "GUESS_WORD"}, describer).OK)
	assert.Equal(t, 1, g.scores[g.currentTeam])

	before := g.currentWord
	require.True(t, g.Apply(&Action{Type: "SKIP_WORD"}, describer).OK)
	assert.Equal(t, before, g.pool[len(g.pool)-1], "skipped word returns to the back")
	mu.Unlock()

	g.Close()
}

func TestRelayCountdownExpiry(t *testing.T) {
	g, sender, mu := startedRelay(t)

	describer := g.currentDescriber()
	startTeam := g.currentTeam

	mu.Lock()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)
	g.timeLeft = 1 // expire on the next tick
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !g.turnActive
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEqual(t, startTeam, g.currentTeam, "turn passes to the next team")
	assert.Equal(t, 5, len(g.pool), "undiscarded word returned to the pool")
	assert.NotEmpty(t, sender.broadcasts("game_update"), "expiry is announced")
}

func TestRelayRoundProgression(t *testing.T) {
	g, sender, mu := startedRelay(t)

	mu.Lock()
	defer mu.Unlock()

	// Burn through the entire pool in one turn.
	describer := g.currentDescriber()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)
	for g.phase == relayPlaying {
		require.True(t, g.Apply(&Action{Type: "GUESS_WORD"}, describer).OK)
	}

	assert.Equal(t, relayRoundOver, g.phase)
	assert.Equal(t, 5, g.scores[0])

	require.True(t, g.Apply(&Action{Type: "NEXT_ROUND"}, describer).OK)
	assert.Equal(t, relayPlaying, g.phase)
	assert.Equal(t, 2, g.round)
	assert.Equal(t, 5, len(g.pool), "pool refills from the full word list")
	assert.NotEmpty(t, sender.broadcasts("relay:round_change"))

	// Second round exhaustion with relayRounds=2 ends the game.
	describer = g.currentDescriber()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)
	for g.phase == relayPlaying {
		require.True(t, g.Apply(&Action{Type: "GUESS_WORD"}, describer).OK)
	}
	assert.Equal(t, relayGameOver, g.phase)
}

func TestRelayRemoveDescriberEndsTurn(t *testing.T) {
	g, _, mu := startedRelay(t)

	mu.Lock()
	defer mu.Unlock()

	describer := g.currentDescriber()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)

	g.Remove(describer)
	assert.False(t, g.turnActive)
}

func TestRelayRotationSkipsEmptiedTeam(t *testing.T) {
	g, _, mu := startedRelay(t)

	mu.Lock()
	defer mu.Unlock()

	g.Remove("b")
	g.Remove("d")
	require.Empty(t, g.teams[1])

	describer := g.currentDescriber()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)

	// The describer leaves mid-turn; rotation must land on the only team
	// that still has members.
	g.Remove(describer)
	assert.False(t, g.turnActive)
	assert.Equal(t, 0, g.currentTeam)
	assert.NotEmpty(t, g.currentDescriber())
}

func TestRelaySnapshotHidesWordBetweenTurns(t *testing.T) {
	g, _, mu := startedRelay(t)

	mu.Lock()
	defer mu.Unlock()

	state := g.snapshotLocked()
	assert.Empty(t, state.CurrentWord)

	describer := g.currentDescriber()
	require.True(t, g.Apply(&Action{Type: "START_TURN"}, describer).OK)
	state = g.snapshotLocked()
	assert.NotEmpty(t, state.CurrentWord)
}
