// internal/httpserver/server.go
//
// HTTP server wiring for the Lights Out backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints: POST /game/new, POST /game/toggle, GET /game/{id}, GET /game/{id}/hint.
//   - Daily puzzle endpoints: mounted under /daily.
//   - Player stats: GET /stats/me.
//
// Notes:
//   - The browser client renders the board and maps clicks to (row, col);
//     this server owns the current Grid of each session and replaces it on every toggle.
//   - Every route runs behind withPlayer, so each request carries an anonymous player ID.
//   - Finished games are logged to SQLite best effort; a DB failure never fails a move.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/lightsout/apps/go-server/internal/config"
	"github.com/robalobadob/lightsout/apps/go-server/internal/daily"
	"github.com/robalobadob/lightsout/apps/go-server/internal/db"
	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
	"github.com/robalobadob/lightsout/apps/go-server/internal/solver"
	"github.com/robalobadob/lightsout/apps/go-server/internal/store"
)

// Server bundles router, session store, DB handle and config.
type Server struct {
	r     *chi.Mux
	store store.Store
	db    *sql.DB
	cfg   config.Config
	daily *daily.Store

	// mu serialises load → toggle → save so concurrent clicks on one
	// session cannot lose a move.
	mu sync.Mutex

	srv *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, database *sql.DB, cfg config.Config) *Server {
	s := &Server{r: chi.NewRouter(), store: st, db: database, cfg: cfg, daily: daily.NewStore(database)}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(cfg.Server.ClientOrigin))   // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"lightsout-go","endpoints":["/health","POST /game/new","POST /game/toggle","GET /game/{id}","GET /game/{id}/hint","/daily/*","GET /stats/me"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withPlayer())

		r.Post("/game/new", s.handleNewGame)
		r.Post("/game/toggle", s.handleToggle)
		r.Get("/game/{id}", s.handleGetGame)
		r.Get("/game/{id}/hint", s.handleHint)
		r.Get("/stats/me", s.handleStats)

		s.mountDaily(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", playerTokenHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------ GAME ---------------------------------------

// gameView is the board payload shared by every game endpoint.
type gameView struct {
	GameID string      `json:"gameId"`
	Board  game.Grid   `json:"board"`
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Status game.Status `json:"status"` // "in_progress" | "won"
	Moves  int         `json:"moves"`
	Daily  bool        `json:"daily,omitempty"`
}

func viewOf(g *game.Game) gameView {
	return gameView{
		GameID: g.ID,
		Board:  g.Grid,
		Rows:   g.Grid.Rows(),
		Cols:   g.Grid.Cols(),
		Status: g.Status(),
		Moves:  g.Moves,
		Daily:  g.Daily,
	}
}

// newGameReq is the POST /game/new payload. Omitted fields use the config defaults.
type newGameReq struct {
	Rows     *int     `json:"rows"`
	Cols     *int     `json:"cols"`
	Chance   *float64 `json:"chance"`
	Seed     *uint64  `json:"seed"`     // fixed seed (replays, testing)
	Solvable bool     `json:"solvable"` // redraw until the board has a solution
}

// handleNewGame generates a board and stores a fresh session for the player.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}

	cfg := s.cfg.Board
	if req.Rows != nil {
		cfg.Rows = *req.Rows
	}
	if req.Cols != nil {
		cfg.Cols = *req.Cols
	}
	if req.Chance != nil {
		cfg.ChanceLightStartsOn = *req.Chance
	}
	if cfg.Rows > s.cfg.Limits.MaxRows || cfg.Cols > s.cfg.Limits.MaxCols {
		http.Error(w, `{"error":"board_too_large"}`, http.StatusBadRequest)
		return
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}

	g, err := s.generate(cfg, seed, req.Solvable)
	switch {
	case errors.Is(err, game.ErrInvalidConfiguration):
		http.Error(w, `{"error":"invalid_configuration"}`, http.StatusBadRequest)
		return
	case errors.Is(err, solver.ErrUnsolvable):
		http.Error(w, `{"error":"no_solvable_board"}`, http.StatusUnprocessableEntity)
		return
	case err != nil:
		log.Error().Err(err).Msg("generate board")
		http.Error(w, `{"error":"generate_failed"}`, http.StatusInternalServerError)
		return
	}
	g.PlayerID = playerID(r)

	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save game")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	log.Debug().Str("gameId", g.ID).Str("player", g.PlayerID).
		Int("rows", cfg.Rows).Int("cols", cfg.Cols).Uint64("seed", seed).Msg("new game")

	_ = json.NewEncoder(w).Encode(viewOf(g))
}

// generate builds a session on a board drawn from seed.
func (s *Server) generate(cfg game.Config, seed uint64, solvable bool) (*game.Game, error) {
	src := rand.New(rand.NewPCG(seed, seed))
	var (
		grid game.Grid
		err  error
	)
	if solvable {
		grid, _, err = solver.GenerateSolvable(cfg, src, s.cfg.Limits.MaxSolvableTries)
	} else {
		grid, err = game.CreateGrid(cfg, src)
	}
	if err != nil {
		return nil, err
	}
	g := game.NewFromGrid(cfg, grid)
	g.Seed = seed
	return g, nil
}

// toggleReq is the POST /game/toggle (and /daily/toggle) payload.
type toggleReq struct {
	GameID string `json:"gameId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

// handleToggle applies one move to the player's game.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	g, ok := s.toggle(w, r, req, false)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(g))
}

// toggle loads, moves and saves a session, writing the error response itself
// on failure. dailyOnly restricts the move to daily sessions.
func (s *Server) toggle(w http.ResponseWriter, r *http.Request, req toggleReq, dailyOnly bool) (*game.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.loadOwned(w, r, req.GameID)
	if !ok {
		return nil, false
	}
	if dailyOnly && !g.Daily {
		http.Error(w, `{"error":"not_daily"}`, http.StatusBadRequest)
		return nil, false
	}

	st, err := g.Toggle(game.Coordinate{Row: req.Row, Col: req.Col})
	if errors.Is(err, game.ErrFinished) {
		http.Error(w, `{"error":"game_finished"}`, http.StatusConflict)
		return nil, false
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("save game")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return nil, false
	}
	if st == game.StatusWon {
		s.recordWin(r.Context(), g)
	}
	return g, true
}

// loadOwned fetches a game that belongs to the requesting player. Games of
// other players are reported as missing.
func (s *Server) loadOwned(w http.ResponseWriter, r *http.Request, id string) (*game.Game, bool) {
	g, err := s.store.Get(r.Context(), id)
	if err != nil || g.PlayerID != playerID(r) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("gameId", id).Msg("load game")
		}
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil, false
	}
	return g, true
}

// recordWin logs a finished game and, for daily sessions, the daily result.
// Best effort: failures are logged and swallowed.
func (s *Server) recordWin(ctx context.Context, g *game.Game) {
	now := time.Now().UTC()
	log.Info().Str("gameId", g.ID).Str("player", g.PlayerID).Int("moves", g.Moves).Bool("daily", g.Daily).Msg("game won")

	if err := db.RecordGame(ctx, s.db, db.GameRecord{
		ID:         g.ID,
		PlayerID:   g.PlayerID,
		Rows:       g.Grid.Rows(),
		Cols:       g.Grid.Cols(),
		Moves:      g.Moves,
		Status:     string(game.StatusWon),
		Daily:      g.Daily,
		StartedAt:  g.StartedAt,
		FinishedAt: now,
	}); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("record game")
	}

	if g.Daily {
		date := daily.DateKey(g.StartedAt)
		if err := s.daily.InsertResult(ctx, daily.Result{
			PlayerID:  g.PlayerID,
			Date:      date,
			Moves:     g.Moves,
			ElapsedMs: int(now.Sub(g.StartedAt).Milliseconds()),
		}); err != nil {
			log.Warn().Err(err).Str("player", g.PlayerID).Str("date", date).Msg("insert daily result")
		}
	}
}

// handleGetGame returns the current board of one of the player's games.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadOwned(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(g))
}

// handleHint suggests one press that belongs to a solution of the board.
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadOwned(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	at, err := solver.Hint(g.Grid)
	switch {
	case errors.Is(err, game.ErrFinished):
		http.Error(w, `{"error":"game_finished"}`, http.StatusConflict)
		return
	case errors.Is(err, solver.ErrUnsolvable):
		http.Error(w, `{"error":"unsolvable"}`, http.StatusUnprocessableEntity)
		return
	}
	_ = json.NewEncoder(w).Encode(at)
}

// handleStats returns the player's completed-game summary.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := playerID(r)
	st, err := db.Stats(r.Context(), s.db, id)
	if err != nil {
		log.Error().Err(err).Str("player", id).Msg("load stats")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"playerId":  id,
		"gamesWon":  st.GamesWon,
		"bestMoves": st.BestMoves,
	})
}
