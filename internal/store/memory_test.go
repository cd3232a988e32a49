package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
)

func newGame(t *testing.T, chance float64) *game.Game {
	t.Helper()
	g, err := game.New(game.Config{Rows: 3, Cols: 3, ChanceLightStartsOn: chance}, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

func TestMemorySaveGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	g := newGame(t, 1)
	if err := st.Save(ctx, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Grid.Equal(g.Grid) || got.ID != g.ID {
		t.Fatalf("mismatch after save/get")
	}
	if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	g := newGame(t, 1)
	_ = st.Save(ctx, g)

	// Mutating the caller's copy after Save must not reach the store.
	if _, err := g.Toggle(game.Coordinate{Row: 1, Col: 1}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	a, _ := st.Get(ctx, g.ID)
	if a.Moves != 0 || a.Grid.LitCount() != 9 {
		t.Fatalf("store aliased caller game: moves=%d\n%s", a.Moves, a.Grid)
	}

	// Two readers get independent copies.
	b, _ := st.Get(ctx, g.ID)
	_, _ = a.Toggle(game.Coordinate{Row: 0, Col: 0})
	if b.Grid.LitCount() != 9 {
		t.Fatalf("readers share a grid:\n%s", b.Grid)
	}
}

func TestMemoryConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := game.NewFromGrid(game.DefaultConfig(), game.NewGrid(5, 5))
			g.ID = fmt.Sprintf("g%d", i)
			g.Grid = game.ToggleAround(g.Grid, game.Coordinate{Row: i % 5, Col: i % 5})
			_ = st.Save(ctx, g)
			got, err := st.Get(ctx, g.ID)
			if err != nil || !got.Grid.Equal(g.Grid) {
				t.Errorf("session %d: unexpected state err=%v", i, err)
			}
		}(i)
	}
	wg.Wait()
}
