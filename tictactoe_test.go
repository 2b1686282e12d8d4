/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicTacToeAdmitOrder(t *testing.T) {
	g := newTicTacToe()

	assert.Equal(t, "X", g.Admit("a"))
	assert.Equal(t, "O", g.Admit("b"))
	assert.Equal(t, "", g.Admit("c"), "third joiner observes")
}

func TestTicTacToeTurnOrder(t *testing.T) {
	g := newTicTacToe()
	g.Admit("a")
	g.Admit("b")

	res := g.Apply(&Action{Type: "PLACE", Index: 0}, "b")
	assert.False(t, res.OK)
	assert.Equal(t, reasonNotYourTurn, res.Reason)

	require.True(t, g.Apply(&Action{Type: "PLACE", Index: 0}, "a").OK)

	res = g.Apply(&Action{Type: "PLACE", Index: 0}, "b")
	assert.False(t, res.OK, "occupied cell")

	res = g.Apply(&Action{Type: "PLACE", Index: 9}, "b")
	assert.False(t, res.OK)
	assert.Equal(t, reasonInvalidTarget, res.Reason)
}

func TestTicTacToeWin(t *testing.T) {
	g := newTicTacToe()
	g.Admit("a")
	g.Admit("b")

	// X takes the top row while O wanders.
	for _, move := range []struct {
		conn  string
		index int
	}{
		{"a", 0}, {"b", 3}, {"a", 1}, {"b", 4}, {"a", 2},
	} {
		require.True(t, g.Apply(&Action{Type: "PLACE", Index: move.index}, move.conn).OK)
	}

	state := g.Snapshot().(ticTacToeState)
	assert.Equal(t, "X", state.Winner)

	res := g.Apply(&Action{Type: "PLACE", Index: 5}, "b")
	assert.False(t, res.OK)
	assert.Equal(t, reasonGameOver, res.Reason)
}

func TestTicTacToeDraw(t *testing.T) {
	g := newTicTacToe()
	g.Admit("a")
	g.Admit("b")

	// Final board: X O X / X O O / O X X, no three in a row.
	order := []int{0, 1, 2, 4, 3, 5, 7, 6, 8}
	turn := "a"
	for _, index := range order {
		require.True(t, g.Apply(&Action{Type: "PLACE", Index: index}, turn).OK)
		if turn == "a" {
			turn = "b"
		} else {
			turn = "a"
		}
	}

	state := g.Snapshot().(ticTacToeState)
	assert.True(t, state.IsDraw)
	assert.Empty(t, state.Winner)
}

func TestTicTacToeForfeitOnRemove(t *testing.T) {
	g := newTicTacToe()
	g.Admit("a")
	g.Admit("b")

	g.Remove("a")

	state := g.Snapshot().(ticTacToeState)
	assert.Equal(t, "O", state.Winner, "remaining side wins by forfeit")
}

func TestTicTacToeMigrateKeepsSymbol(t *testing.T) {
	g := newTicTacToe()
	g.Admit("a")
	g.Admit("b")

	g.Migrate("a", "a2")

	require.True(t, g.Apply(&Action{Type: "PLACE", Index: 4}, "a2").OK)
	state := g.Snapshot().(ticTacToeState)
	assert.Equal(t, "X", state.Board[4])
}
