// internal/game/types.go
//
// Core type definitions for the Lights Out engine.
// Defines:
//   - Status:     derived game state (in_progress / won).
//   - Coordinate: (row, col) address of a cell.
//   - Config:     immutable board parameters fixed at game creation.
//   - Grid:       the board itself, a row-major rectangle of lit/unlit cells.
//   - Game:       a single player's session wrapped around one Grid.

package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the derived state of a board. It is recomputed from the Grid on
// every call and never stored alongside it.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
)

// Coordinate addresses a single cell. Row and Col are zero-based.
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Config holds the board parameters chosen at game creation.
type Config struct {
	Rows                int     `json:"rows" yaml:"rows"`
	Cols                int     `json:"cols" yaml:"cols"`
	ChanceLightStartsOn float64 `json:"chance" yaml:"chance_light_starts_on"`
}

// DefaultConfig returns the classic 5x5 board where each light is a coin flip.
func DefaultConfig() Config {
	return Config{Rows: 5, Cols: 5, ChanceLightStartsOn: 0.5}
}

// Grid is a rectangular board of cells. A Grid is a value: ToggleAround and
// Clone never hand out cell storage shared with another Grid.
type Grid struct {
	rows, cols int
	cells      [][]bool
}

// NewGrid returns an all-off grid. Callers are expected to pass validated
// dimensions; non-positive values yield an empty grid.
func NewGrid(rows, cols int) Grid {
	if rows < 1 || cols < 1 {
		return Grid{}
	}
	cells := make([][]bool, rows)
	for r := range cells {
		cells[r] = make([]bool, cols)
	}
	return Grid{rows: rows, cols: cols, cells: cells}
}

// FromCells builds a Grid from a copy of cells. Every row must have the same,
// non-zero length.
func FromCells(cells [][]bool) (Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return Grid{}, errors.New("grid: empty")
	}
	g := NewGrid(len(cells), len(cells[0]))
	for r, row := range cells {
		if len(row) != g.cols {
			return Grid{}, fmt.Errorf("grid: row %d has %d cells, want %d", r, len(row), g.cols)
		}
		copy(g.cells[r], row)
	}
	return g, nil
}

// ParseGrid reads the text form produced by Grid.String: one line per row,
// 'O' for a lit cell and '.' for an unlit one. Spaces are ignored.
func ParseGrid(s string) (Grid, error) {
	var cells [][]bool
	for i, line := range strings.Split(strings.TrimSpace(s), "\n") {
		var row []bool
		for _, ch := range line {
			switch ch {
			case 'O', 'o':
				row = append(row, true)
			case '.':
				row = append(row, false)
			case ' ', '\t', '\r':
			default:
				return Grid{}, fmt.Errorf("grid: line %d: unexpected %q", i, ch)
			}
		}
		cells = append(cells, row)
	}
	return FromCells(cells)
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g Grid) Cols() int { return g.cols }

// InBounds reports whether c addresses a cell of g.
func (g Grid) InBounds(c Coordinate) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// Lit reports whether the cell at c is on. Out-of-bounds cells are off.
func (g Grid) Lit(c Coordinate) bool {
	return g.InBounds(c) && g.cells[c.Row][c.Col]
}

// LitCount returns how many cells are on.
func (g Grid) LitCount() int {
	n := 0
	for _, row := range g.cells {
		for _, lit := range row {
			if lit {
				n++
			}
		}
	}
	return n
}

// Cells returns a copy of the board as rows of booleans.
func (g Grid) Cells() [][]bool {
	return g.Clone().cells
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	out := Grid{rows: g.rows, cols: g.cols, cells: make([][]bool, len(g.cells))}
	for r, row := range g.cells {
		out.cells[r] = append([]bool(nil), row...)
	}
	return out
}

// Equal reports whether two grids have the same shape and cell states.
func (g Grid) Equal(o Grid) bool {
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for r := range g.cells {
		for c := range g.cells[r] {
			if g.cells[r][c] != o.cells[r][c] {
				return false
			}
		}
	}
	return true
}

// String renders the board with 'O' for lit and '.' for unlit cells.
func (g Grid) String() string {
	var b strings.Builder
	for r, row := range g.cells {
		if r > 0 {
			b.WriteByte('\n')
		}
		for _, lit := range row {
			if lit {
				b.WriteByte('O')
			} else {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

// MarshalJSON encodes the board as an array of rows of booleans.
func (g Grid) MarshalJSON() ([]byte, error) {
	if g.cells == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g.cells)
}

// UnmarshalJSON decodes the form written by MarshalJSON. Ragged rows are rejected.
func (g *Grid) UnmarshalJSON(b []byte) error {
	var cells [][]bool
	if err := json.Unmarshal(b, &cells); err != nil {
		return err
	}
	if len(cells) == 0 {
		*g = Grid{}
		return nil
	}
	out, err := FromCells(cells)
	if err != nil {
		return err
	}
	*g = out
	return nil
}

// Game holds the state of a single Lights Out session.
type Game struct {
	ID        string    // Unique game identifier (random hex string).
	PlayerID  string    // Owner of the session; empty when unowned.
	Config    Config    // Parameters the board was generated with.
	Grid      Grid      // Current board; replaced on every toggle.
	Moves     int       // Toggles that affected at least one cell.
	Seed      uint64    // RNG seed the board was generated from.
	Daily     bool      // True for the shared daily puzzle.
	StartedAt time.Time // Creation time, UTC.
}
