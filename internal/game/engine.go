// internal/game/engine.go
//
// Core game engine for Lights Out.
// Responsibilities:
//   - Validate board configuration and generate random initial boards.
//   - Apply the toggle rule: a cell and its four orthogonal neighbours flip.
//   - Detect the win condition (every light off).
//   - Track a session: move counting and the in_progress → won transition.
//
// Notes:
//   - Randomness is injected via Source; *rand.Rand from math/rand/v2 satisfies it.
//   - Grids are values. ToggleAround returns a fresh Grid and leaves its input untouched.
//   - The engine itself accepts toggles on a won board; Game.Toggle refuses them.
package game

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidConfiguration is returned for non-positive dimensions or a
	// start chance outside [0, 1].
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrFinished is returned when a session receives a toggle after it was won.
	ErrFinished = errors.New("game finished")
)

// Source supplies uniform samples in [0, 1).
type Source interface {
	Float64() float64
}

// toggleMask lists the offsets flipped by one move: centre, up, down, left, right.
var toggleMask = [...]Coordinate{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Validate checks the configuration against the board contract.
func (c Config) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("rows=%d, cols=%d (each must be >= 1): %w", c.Rows, c.Cols, ErrInvalidConfiguration)
	}
	if math.IsNaN(c.ChanceLightStartsOn) || c.ChanceLightStartsOn < 0 || c.ChanceLightStartsOn > 1 {
		return fmt.Errorf("chance=%v (must be within [0, 1]): %w", c.ChanceLightStartsOn, ErrInvalidConfiguration)
	}
	return nil
}

// CreateGrid builds a cfg.Rows x cfg.Cols board. Each cell draws exactly one
// sample from src in row-major order and starts lit iff the sample is below
// cfg.ChanceLightStartsOn.
func CreateGrid(cfg Config, src Source) (Grid, error) {
	if err := cfg.Validate(); err != nil {
		return Grid{}, err
	}
	g := NewGrid(cfg.Rows, cfg.Cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			g.cells[r][c] = src.Float64() < cfg.ChanceLightStartsOn
		}
	}
	return g, nil
}

// ToggleAround returns a copy of g with the cell at `at` and its orthogonal
// neighbours flipped. Cells outside the board, the centre included, are
// skipped.
func ToggleAround(g Grid, at Coordinate) Grid {
	out := g.Clone()
	for _, c := range g.Affected(at) {
		out.cells[c.Row][c.Col] = !out.cells[c.Row][c.Col]
	}
	return out
}

// Affected lists the in-bounds cells a toggle at `at` would flip, in mask
// order. It is empty when the move misses the board entirely.
func (g Grid) Affected(at Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(toggleMask))
	for _, d := range toggleMask {
		c := Coordinate{Row: at.Row + d.Row, Col: at.Col + d.Col}
		if g.InBounds(c) {
			out = append(out, c)
		}
	}
	return out
}

// CheckWin reports StatusWon iff no cell is lit.
func CheckWin(g Grid) Status {
	for _, row := range g.cells {
		for _, lit := range row {
			if lit {
				return StatusInProgress
			}
		}
	}
	return StatusWon
}

// New validates cfg and starts a session on a freshly generated board.
// A board that comes out all-off is already won.
func New(cfg Config, src Source) (*Game, error) {
	grid, err := CreateGrid(cfg, src)
	if err != nil {
		return nil, err
	}
	return NewFromGrid(cfg, grid), nil
}

// NewFromGrid starts a session on an already generated board. The grid is
// copied.
func NewFromGrid(cfg Config, grid Grid) *Game {
	return &Game{
		ID:        randomID(),
		Config:    cfg,
		Grid:      grid.Clone(),
		StartedAt: time.Now().UTC(),
	}
}

// Status derives the session state from the current board.
func (g *Game) Status() Status { return CheckWin(g.Grid) }

// Toggle applies one move and returns the resulting status.
//
// Rules:
//   - A won session rejects further moves with ErrFinished.
//   - Moves that miss the board entirely change nothing and are not counted.
func (g *Game) Toggle(at Coordinate) (Status, error) {
	if g.Status() == StatusWon {
		return StatusWon, ErrFinished
	}
	if len(g.Grid.Affected(at)) > 0 {
		g.Grid = ToggleAround(g.Grid, at)
		g.Moves++
	}
	return g.Status(), nil
}

// Clone returns a deep copy of the session.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Grid = g.Grid.Clone()
	return &cp
}

// randomID returns a compact 16-hex-char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
