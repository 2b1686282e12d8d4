/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) (*Registry, *fakeSender, *fakeBinder) {
	t.Helper()

	sender := &fakeSender{}
	binder := newFakeBinder()
	reg := newRegistry(testConfig(), sender, binder, &fakeGenerator{})
	return reg, sender, binder
}

func TestRegistryRejectsUnknownVariant(t *testing.T) {
	reg, _, _ := testRegistry(t)

	_, err := reg.CreateRoom("conn1", "alice", "chess")
	assert.ErrorIs(t, err, errUnknownVariant)
}

func TestRegistryCreateAndJoin(t *testing.T) {
	reg, sender, binder := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.Len(t, roomID, 4)

	require.NoError(t, reg.Join("conn2", roomID, "bob"))

	assert.Equal(t, roomID, binder.rooms["conn1"])
	assert.Equal(t, roomID, binder.rooms["conn2"])

	updates := sender.broadcasts("room_update")
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1].Payload.(roomUpdate)
	require.Len(t, last.Players, 2)
	assert.Equal(t, "X", last.Players[0].Assignment)
	assert.Equal(t, "O", last.Players[1].Assignment)
	assert.Equal(t, "conn1", last.Host)

	err = reg.Join("conn3", "ZZZZ", "carol")
	assert.ErrorIs(t, err, errRoomNotFound)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg, _, _ := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)

	err = reg.Join("conn2", roomID, "alice")
	assert.ErrorIs(t, err, errNameTaken)
}

func TestRegistryRejoinMigratesIdentity(t *testing.T) {
	reg, _, _ := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.NoError(t, reg.Join("conn2", roomID, "bob"))

	reg.Leave("conn1")
	require.NoError(t, reg.Join("conn9", roomID, "alice"))

	room, p := reg.findByConn("conn9")
	require.NotNil(t, p)
	assert.True(t, p.Connected)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "X", p.Assignment, "seat survives the reconnect")
	assert.Equal(t, "conn9", room.host, "host role follows the identity")

	// The migrated connection can play its seat.
	reg.Dispatch("conn9", roomID, &Action{Type: "PLACE", Index: 0})
	state := room.game.Snapshot().(ticTacToeState)
	assert.Equal(t, "X", state.Board[0])
}

func TestRegistryGraceExpiry(t *testing.T) {
	sender := &fakeSender{}
	cfg := testConfig()
	cfg.gracePeriod = 20 * time.Millisecond
	reg := newRegistry(cfg, sender, newFakeBinder(), &fakeGenerator{})

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.NoError(t, reg.Join("conn2", roomID, "bob"))

	reg.Leave("conn2")

	require.Eventually(t, func() bool {
		room, _ := reg.findByConn("conn1")
		if room == nil {
			return false
		}
		room.mu.Lock()
		defer room.mu.Unlock()
		return len(room.players) == 1
	}, time.Second, 5*time.Millisecond)

	// The abandoned seat forfeited the game.
	room, _ := reg.findByConn("conn1")
	room.mu.Lock()
	state := room.game.Snapshot().(ticTacToeState)
	room.mu.Unlock()
	assert.Equal(t, "X", state.Winner)
}

func TestRegistryRejoinCancelsGraceTimer(t *testing.T) {
	sender := &fakeSender{}
	cfg := testConfig()
	cfg.gracePeriod = 30 * time.Millisecond
	reg := newRegistry(cfg, sender, newFakeBinder(), &fakeGenerator{})

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)

	reg.Leave("conn1")
	require.NoError(t, reg.Join("conn2", roomID, "alice"))

	time.Sleep(100 * time.Millisecond)

	room, p := reg.findByConn("conn2")
	require.NotNil(t, room, "room survives: the timer was cancelled")
	assert.True(t, p.Connected)
}

func TestRegistryGraceTimerScopedToRoom(t *testing.T) {
	sender := &fakeSender{}
	cfg := testConfig()
	cfg.gracePeriod = 30 * time.Millisecond
	reg := newRegistry(cfg, sender, newFakeBinder(), &fakeGenerator{})

	roomA, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.NoError(t, reg.Join("conn2", roomA, "bob"))

	roomB, err := reg.CreateRoom("conn3", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.NoError(t, reg.Join("conn4", roomB, "carol"))

	// Alice abandons room A, then bounces her connection in room B. The
	// room B rejoin must not cancel room A's pending removal.
	reg.Leave("conn1")
	reg.Leave("conn3")
	require.NoError(t, reg.Join("conn5", roomB, "alice"))

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		room := reg.rooms[roomA]
		reg.mu.Unlock()
		room.mu.Lock()
		defer room.mu.Unlock()
		return len(room.players) == 1
	}, time.Second, 5*time.Millisecond)

	_, p := reg.findByConn("conn5")
	require.NotNil(t, p)
	assert.True(t, p.Connected)
}

func TestRegistryDestroysEmptiedRoom(t *testing.T) {
	sender := &fakeSender{}
	cfg := testConfig()
	cfg.gracePeriod = 10 * time.Millisecond
	reg := newRegistry(cfg, sender, newFakeBinder(), &fakeGenerator{})

	_, err := reg.CreateRoom("conn1", "alice", variantRelay)
	require.NoError(t, err)

	reg.Leave("conn1")

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.rooms) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRegistryDispatchRequiresSeat(t *testing.T) {
	reg, sender, _ := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)

	reg.Dispatch("intruder", roomID, &Action{Type: "PLACE", Index: 0})

	event := sender.lastTo("intruder", "error")
	require.NotNil(t, event)
	assert.Equal(t, errNotInRoom.Error(), event.Payload.(map[string]string)["message"])

	reg.Dispatch("conn1", "ZZZZ", &Action{Type: "PLACE", Index: 0})
	event = sender.lastTo("conn1", "error")
	require.NotNil(t, event)
	assert.Equal(t, errRoomNotFound.Error(), event.Payload.(map[string]string)["message"])
}

func TestRegistryDispatchOutcomes(t *testing.T) {
	reg, sender, _ := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantTicTacToe)
	require.NoError(t, err)
	require.NoError(t, reg.Join("conn2", roomID, "bob"))

	// Accepted actions fan out the fresh snapshot.
	reg.Dispatch("conn1", roomID, &Action{Type: "PLACE", Index: 4})
	updates := sender.broadcasts("game_update")
	require.NotEmpty(t, updates)
	state := updates[len(updates)-1].Payload.(ticTacToeState)
	assert.Equal(t, "X", state.Board[4])

	// Rejections go back privately and change nothing.
	before := len(sender.broadcasts("game_update"))
	reg.Dispatch("conn2", roomID, &Action{Type: "PLACE", Index: 4})
	event := sender.lastTo("conn2", "error")
	require.NotNil(t, event)
	assert.Len(t, sender.broadcasts("game_update"), before)
}

func TestRegistryStampsRosterOnActions(t *testing.T) {
	reg, _, _ := testRegistry(t)

	roster := cabalRoster(5)
	roomID, err := reg.CreateRoom(roster[0].ConnID, roster[0].Username, variantCabal)
	require.NoError(t, err)
	for _, seat := range roster[1:] {
		require.NoError(t, reg.Join(seat.ConnID, roomID, seat.Username))
	}

	reg.Dispatch(roster[0].ConnID, roomID, &Action{Type: "START_GAME"})

	room, _ := reg.findByConn(roster[0].ConnID)
	room.mu.Lock()
	defer room.mu.Unlock()
	state := room.game.Snapshot().(cabalState)
	assert.Equal(t, cabalRoleReveal, state.Phase)
	require.Len(t, state.Players, 5)
}

func TestRegistryFindRoomByUser(t *testing.T) {
	reg, _, _ := testRegistry(t)

	roomID, err := reg.CreateRoom("conn1", "alice", variantBluff)
	require.NoError(t, err)

	found, variant, ok := reg.FindRoomByUser("alice")
	require.True(t, ok)
	assert.Equal(t, roomID, found)
	assert.Equal(t, variantBluff, variant)

	_, _, ok = reg.FindRoomByUser("nobody")
	assert.False(t, ok)
}
