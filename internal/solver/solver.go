// internal/solver/solver.go
//
// Lights Out solver.
// Each press is a variable over GF(2): pressing twice cancels, and the order of
// presses does not matter. A board of n cells is therefore the linear system
// A·x = b, where A[i][j] = 1 when pressing cell j flips cell i, and b is the
// current lit state. Gauss-Jordan elimination reduces the system; free
// variables are left unpressed, so the returned solution is one valid press
// set, not necessarily the shortest one.

package solver

import (
	"errors"

	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
)

// ErrUnsolvable is returned when no press set can turn every light off.
var ErrUnsolvable = errors.New("board is unsolvable")

// Solve returns a set of presses, in row-major order, that turns every light
// of g off. ok is false when the board has no solution.
func Solve(g game.Grid) (moves []game.Coordinate, ok bool) {
	rows, cols := g.Rows(), g.Cols()
	n := rows * cols
	if n == 0 {
		return nil, true
	}

	// Augmented matrix: n columns of press coefficients plus the lit state.
	m := make([][]bool, n)
	for i := range m {
		at := game.Coordinate{Row: i / cols, Col: i % cols}
		row := make([]bool, n+1)
		// The mask is symmetric, so the cells flipped by pressing `at` are
		// exactly the presses that flip `at`.
		for _, c := range g.Affected(at) {
			row[c.Row*cols+c.Col] = true
		}
		row[n] = g.Lit(at)
		m[i] = row
	}

	pivots := make([]int, 0, n)
	rank := 0
	for col := 0; col < n && rank < n; col++ {
		p := -1
		for r := rank; r < n; r++ {
			if m[r][col] {
				p = r
				break
			}
		}
		if p < 0 {
			continue
		}
		m[rank], m[p] = m[p], m[rank]
		for r := 0; r < n; r++ {
			if r != rank && m[r][col] {
				xorRow(m[r], m[rank])
			}
		}
		pivots = append(pivots, col)
		rank++
	}

	// A zero row with a lit right-hand side is a contradiction.
	for r := rank; r < n; r++ {
		if m[r][n] {
			return nil, false
		}
	}

	for i, col := range pivots {
		if m[i][n] {
			moves = append(moves, game.Coordinate{Row: col / cols, Col: col % cols})
		}
	}
	return moves, true
}

// Solvable reports whether g can be turned fully off.
func Solvable(g game.Grid) bool {
	_, ok := Solve(g)
	return ok
}

// Hint returns a single press that belongs to a solution of g.
// It returns ErrUnsolvable for boards without a solution and game.ErrFinished
// for boards that are already won.
func Hint(g game.Grid) (game.Coordinate, error) {
	if game.CheckWin(g) == game.StatusWon {
		return game.Coordinate{}, game.ErrFinished
	}
	moves, ok := Solve(g)
	if !ok {
		return game.Coordinate{}, ErrUnsolvable
	}
	return moves[0], nil
}

// GenerateSolvable draws boards from src until one is solvable, giving up
// after maxTries attempts. It returns the board and the attempts used.
func GenerateSolvable(cfg game.Config, src game.Source, maxTries int) (game.Grid, int, error) {
	if maxTries < 1 {
		maxTries = 1
	}
	for try := 1; ; try++ {
		g, err := game.CreateGrid(cfg, src)
		if err != nil {
			return game.Grid{}, try, err
		}
		if Solvable(g) {
			return g, try, nil
		}
		if try >= maxTries {
			return game.Grid{}, try, ErrUnsolvable
		}
	}
}

func xorRow(dst, src []bool) {
	for i := range dst {
		dst[i] = dst[i] != src[i]
	}
}
