package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/robalobadob/lightsout/apps/go-server/internal/config"
	"github.com/robalobadob/lightsout/apps/go-server/internal/db"
	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
	"github.com/robalobadob/lightsout/apps/go-server/internal/solver"
	"github.com/robalobadob/lightsout/apps/go-server/internal/store"
)

type testView struct {
	GameID string   `json:"gameId"`
	Board  [][]bool `json:"board"`
	Rows   int      `json:"rows"`
	Cols   int      `json:"cols"`
	Status string   `json:"status"`
	Moves  int      `json:"moves"`
	Daily  bool     `json:"daily"`
}

func (v testView) grid(t *testing.T) game.Grid {
	t.Helper()
	g, err := game.FromCells(v.Board)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	return g
}

// client remembers the player token minted on its first request.
type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if tok := rec.Header().Get(playerTokenHeader); tok != "" && c.token == "" {
		c.token = tok
	}
	return rec
}

func (c *client) view(method, path string, body any) testView {
	c.t.Helper()
	rec := c.do(method, path, body)
	if rec.Code != http.StatusOK {
		c.t.Fatalf("%s %s: expected 200, got %d: %s", method, path, rec.Code, rec.Body.String())
	}
	var v testView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		c.t.Fatalf("decode view: %v", err)
	}
	return v
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test_secret"
	return New(store.NewMemoryStore(), d, cfg).Router()
}

func newClient(t *testing.T, h http.Handler) *client { return &client{t: t, h: h} }

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }
func seedp(n uint64) *uint64    { return &n }

func TestHealth(t *testing.T) {
	c := newClient(t, newTestServer(t))
	rec := c.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewGameDefaults(t *testing.T) {
	c := newClient(t, newTestServer(t))
	v := c.view(http.MethodPost, "/game/new", nil)
	if v.Rows != 5 || v.Cols != 5 || len(v.Board) != 5 || len(v.Board[0]) != 5 {
		t.Fatalf("expected default 5x5 board, got %dx%d", v.Rows, v.Cols)
	}
	if v.GameID == "" || c.token == "" {
		t.Fatalf("expected game id and player token")
	}
}

func TestNewGameAllOffIsWonAndRejectsToggles(t *testing.T) {
	c := newClient(t, newTestServer(t))
	v := c.view(http.MethodPost, "/game/new", newGameReq{Rows: intp(3), Cols: intp(3), Chance: floatp(0)})
	if v.Status != string(game.StatusWon) {
		t.Fatalf("expected won at creation, got %s", v.Status)
	}
	rec := c.do(http.MethodPost, "/game/toggle", toggleReq{GameID: v.GameID, Row: 1, Col: 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on won game, got %d", rec.Code)
	}
}

func TestNewGameInvalidConfiguration(t *testing.T) {
	c := newClient(t, newTestServer(t))
	for _, req := range []newGameReq{
		{Rows: intp(0)},
		{Cols: intp(-2)},
		{Chance: floatp(1.5)},
		{Rows: intp(500)},
	} {
		if rec := c.do(http.MethodPost, "/game/new", req); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %+v: expected 400, got %d", req, rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/game/new", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestNewGameSeedIsDeterministic(t *testing.T) {
	c := newClient(t, newTestServer(t))
	a := c.view(http.MethodPost, "/game/new", newGameReq{Seed: seedp(99)})
	b := c.view(http.MethodPost, "/game/new", newGameReq{Seed: seedp(99)})
	if a.GameID == b.GameID {
		t.Fatalf("expected distinct games")
	}
	if !a.grid(t).Equal(b.grid(t)) {
		t.Fatalf("expected identical boards for seed 99")
	}
}

func TestPlayToWinAndStats(t *testing.T) {
	c := newClient(t, newTestServer(t))
	v := c.view(http.MethodPost, "/game/new", newGameReq{Rows: intp(3), Cols: intp(3), Chance: floatp(1)})
	if v.Status != string(game.StatusInProgress) {
		t.Fatalf("expected in_progress, got %s", v.Status)
	}

	moves, ok := solver.Solve(v.grid(t))
	if !ok || len(moves) == 0 {
		t.Fatalf("expected a solution for the all-on 3x3 board")
	}
	for i, m := range moves {
		v = c.view(http.MethodPost, "/game/toggle", toggleReq{GameID: v.GameID, Row: m.Row, Col: m.Col})
		if v.Moves != i+1 {
			t.Fatalf("expected %d moves, got %d", i+1, v.Moves)
		}
	}
	if v.Status != string(game.StatusWon) {
		t.Fatalf("expected won after solution, got %s", v.Status)
	}

	got := c.view(http.MethodGet, "/game/"+v.GameID, nil)
	if got.Status != string(game.StatusWon) || got.Moves != len(moves) {
		t.Fatalf("GET returned stale state: %+v", got)
	}

	rec := c.do(http.MethodGet, "/stats/me", nil)
	var stats struct {
		GamesWon  int `json:"gamesWon"`
		BestMoves int `json:"bestMoves"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.GamesWon != 1 || stats.BestMoves != len(moves) {
		t.Fatalf("expected 1 win in %d moves, got %+v", len(moves), stats)
	}
}

func TestToggleOutOfBoundsIsNoop(t *testing.T) {
	c := newClient(t, newTestServer(t))
	v := c.view(http.MethodPost, "/game/new", newGameReq{Rows: intp(3), Cols: intp(3), Chance: floatp(1)})
	after := c.view(http.MethodPost, "/game/toggle", toggleReq{GameID: v.GameID, Row: 9, Col: 9})
	if after.Moves != 0 || !after.grid(t).Equal(v.grid(t)) {
		t.Fatalf("expected unchanged board, got moves=%d", after.Moves)
	}
	edge := c.view(http.MethodPost, "/game/toggle", toggleReq{GameID: v.GameID, Row: -1, Col: 0})
	if edge.Moves != 1 || edge.grid(t).LitCount() != 8 {
		t.Fatalf("expected only (0,0) flipped, got moves=%d lit=%d", edge.Moves, edge.grid(t).LitCount())
	}
}

func TestGamesArePrivateToPlayer(t *testing.T) {
	h := newTestServer(t)
	alice, bob := newClient(t, h), newClient(t, h)
	v := alice.view(http.MethodPost, "/game/new", nil)

	if rec := bob.do(http.MethodPost, "/game/toggle", toggleReq{GameID: v.GameID}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign game, got %d", rec.Code)
	}
	if rec := bob.do(http.MethodGet, "/game/"+v.GameID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign game, got %d", rec.Code)
	}
	if rec := alice.do(http.MethodPost, "/game/toggle", toggleReq{GameID: "nope"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d", rec.Code)
	}
}

func TestForgedTokenGetsNewIdentity(t *testing.T) {
	c := newClient(t, newTestServer(t))
	c.token = "not-a-jwt"
	rec := c.do(http.MethodGet, "/stats/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(playerTokenHeader) == "" {
		t.Fatalf("expected a fresh player token")
	}
}

func TestHint(t *testing.T) {
	c := newClient(t, newTestServer(t))
	v := c.view(http.MethodPost, "/game/new", newGameReq{Rows: intp(3), Cols: intp(3), Chance: floatp(1)})

	rec := c.do(http.MethodGet, "/game/"+v.GameID+"/hint", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var at game.Coordinate
	if err := json.Unmarshal(rec.Body.Bytes(), &at); err != nil {
		t.Fatalf("decode hint: %v", err)
	}
	if !v.grid(t).InBounds(at) {
		t.Fatalf("hint %v out of bounds", at)
	}

	won := c.view(http.MethodPost, "/game/new", newGameReq{Rows: intp(2), Cols: intp(2), Chance: floatp(0)})
	if rec := c.do(http.MethodGet, "/game/"+won.GameID+"/hint", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for won board, got %d", rec.Code)
	}
}

func TestSolvableNewGame(t *testing.T) {
	c := newClient(t, newTestServer(t))
	for i := uint64(0); i < 5; i++ {
		v := c.view(http.MethodPost, "/game/new", newGameReq{Seed: seedp(i), Solvable: true})
		if !solver.Solvable(v.grid(t)) {
			t.Fatalf("seed %d: expected solvable board", i)
		}
	}
}

func TestDailyFlow(t *testing.T) {
	h := newTestServer(t)
	alice, bob := newClient(t, h), newClient(t, h)

	var first newRes
	if err := json.Unmarshal(alice.do(http.MethodPost, "/daily/new", nil).Body.Bytes(), &first); err != nil {
		t.Fatalf("decode daily new: %v", err)
	}
	if first.GameID == "" || first.Played || first.Game == nil {
		t.Fatalf("unexpected daily start %+v", first)
	}

	var again newRes
	_ = json.Unmarshal(alice.do(http.MethodPost, "/daily/new", nil).Body.Bytes(), &again)
	if again.GameID != first.GameID {
		t.Fatalf("expected session reuse, got %s vs %s", again.GameID, first.GameID)
	}

	var bobs newRes
	_ = json.Unmarshal(bob.do(http.MethodPost, "/daily/new", nil).Body.Bytes(), &bobs)
	if bobs.GameID == first.GameID || !bobs.Game.Board.Equal(first.Game.Board) {
		t.Fatalf("expected same board in a separate session")
	}

	// Regular games cannot be played through /daily/toggle.
	reg := alice.view(http.MethodPost, "/game/new", nil)
	if rec := alice.do(http.MethodPost, "/daily/toggle", toggleReq{GameID: reg.GameID}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-daily game, got %d", rec.Code)
	}

	moves, ok := solver.Solve(first.Game.Board)
	if !ok {
		t.Fatalf("daily board must be solvable")
	}
	var v testView
	for _, m := range moves {
		v = alice.view(http.MethodPost, "/daily/toggle", toggleReq{GameID: first.GameID, Row: m.Row, Col: m.Col})
		if v.Status == string(game.StatusWon) {
			break
		}
	}
	if v.Status != string(game.StatusWon) {
		t.Fatalf("expected daily won, got %s", v.Status)
	}

	var done newRes
	_ = json.Unmarshal(alice.do(http.MethodPost, "/daily/new", nil).Body.Bytes(), &done)
	if !done.Played {
		t.Fatalf("expected played after win, got %+v", done)
	}

	rec := alice.do(http.MethodGet, "/daily/leaderboard", nil)
	var lb struct {
		Date string `json:"date"`
		Top  []struct {
			Moves int `json:"moves"`
		} `json:"top"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if lb.Date != first.Date || len(lb.Top) != 1 || lb.Top[0].Moves != v.Moves {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	if rec := alice.do(http.MethodGet, "/daily/leaderboard?date=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}
