/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// TicTacToe is the ordered turn-elimination variant: the first two
// admissions take X and O, later joiners observe. A seated player leaving
// for good forfeits the game to the opponent.
type TicTacToe struct {
	board       [9]string
	currentTurn string
	winner      string
	isDraw      bool
	symbols     map[string]string // connID -> "X" or "O"
}

func newTicTacToe() *TicTacToe {
	return &TicTacToe{
		currentTurn: "X",
		symbols:     make(map[string]string),
	}
}

func (g *TicTacToe) Admit(connID string) string {
	switch len(g.symbols) {
	case 0:
		g.symbols[connID] = "X"
		return "X"
	case 1:
		g.symbols[connID] = "O"
		return "O"
	default:
		return "" // observer
	}
}

func (g *TicTacToe) Migrate(oldID, newID string) {
	if oldID == newID {
		return
	}
	if symbol, ok := g.symbols[oldID]; ok {
		delete(g.symbols, oldID)
		g.symbols[newID] = symbol
	}
}

func (g *TicTacToe) Remove(connID string) {
	symbol, ok := g.symbols[connID]
	delete(g.symbols, connID)
	if !ok || g.winner != "" || g.isDraw {
		return
	}
	// Forfeit: the remaining side wins outright.
	if symbol == "X" {
		g.winner = "O"
	} else {
		g.winner = "X"
	}
}

func (g *TicTacToe) Apply(act *Action, connID string) Result {
	switch act.Type {
	case "PLACE":
		return g.place(act.Index, connID)
	default:
		return reject(reasonUnknownAction)
	}
}

func (g *TicTacToe) place(index int, connID string) Result {
	if g.winner != "" || g.isDraw {
		return reject(reasonGameOver)
	}
	if g.symbols[connID] != g.currentTurn {
		return reject(reasonNotYourTurn)
	}
	if index < 0 || index >= len(g.board) {
		return reject(reasonInvalidTarget)
	}
	if g.board[index] != "" {
		return reject("cell occupied")
	}

	g.board[index] = g.currentTurn

	switch {
	case g.lineComplete():
		g.winner = g.currentTurn
	case g.boardFull():
		g.isDraw = true
	default:
		if g.currentTurn == "X" {
			g.currentTurn = "O"
		} else {
			g.currentTurn = "X"
		}
	}

	return accept()
}

var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func (g *TicTacToe) lineComplete() bool {
	for _, line := range winningLines {
		a, b, c := line[0], line[1], line[2]
		if g.board[a] != "" && g.board[a] == g.board[b] && g.board[a] == g.board[c] {
			return true
		}
	}
	return false
}

func (g *TicTacToe) boardFull() bool {
	for _, cell := range g.board {
		if cell == "" {
			return false
		}
	}
	return true
}

type ticTacToeState struct {
	Board       [9]string `json:"board"`
	CurrentTurn string    `json:"current_turn"`
	Winner      string    `json:"winner,omitempty"`
	IsDraw      bool      `json:"is_draw"`
}

func (g *TicTacToe) Snapshot() any {
	return ticTacToeState{
		Board:       g.board,
		CurrentTurn: g.currentTurn,
		Winner:      g.winner,
		IsDraw:      g.isDraw,
	}
}
