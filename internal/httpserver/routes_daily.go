// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Puzzle" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's puzzle (creates or reuses the session)
//   - POST /daily/toggle      → apply a move to today's puzzle
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Every player gets the same solvable board on a given UTC date, derived from
// daily.Seed(date, salt). Each player may finish it once per day (enforced by
// the DB unique key and the in-memory session map).

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/lightsout/apps/go-server/internal/daily"
	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
	"github.com/robalobadob/lightsout/apps/go-server/internal/solver"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	salt     string
	now      func() time.Time
	sessions map[string]dailySession // keyed by playerID|date
	mu       sync.Mutex              // guards sessions
}

// dailySession ties a player's daily game to its date.
type dailySession struct {
	GameID string
	Date   string
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		salt:     s.cfg.Daily.Salt,
		now:      time.Now,
		sessions: make(map[string]dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/toggle", dd.handleToggle)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// -----------------------------------------------------------------------------
// /daily/new

// newRes is returned by /daily/new. Game is omitted once the day is played.
type newRes struct {
	GameID string    `json:"gameId"`
	Date   string    `json:"date"`
	Played bool      `json:"played"`
	Game   *gameView `json:"game,omitempty"`
}

// handleNew creates or reuses today's session.
// - If the player already has a DB result for today → Played=true.
// - Otherwise reuse the in-memory session or generate today's board.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := d.now().UTC()
	date := daily.DateKey(now)

	if played, err := d.srv.daily.AlreadyPlayed(r.Context(), pid, date); err != nil {
		log.Warn().Err(err).Str("player", pid).Str("date", date).Msg("check daily played")
	} else if played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	key := pid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()

	if sess, ok := d.sessions[key]; ok {
		if g, err := d.srv.store.Get(r.Context(), sess.GameID); err == nil {
			v := viewOf(g)
			_ = json.NewEncoder(w).Encode(newRes{GameID: g.ID, Date: date, Played: g.Status() == game.StatusWon, Game: &v})
			return
		}
	}
	d.pruneLocked(date)

	seed := daily.Seed(now, d.salt)
	grid, _, err := solver.GenerateSolvable(d.srv.cfg.Board, daily.Rand(seed), d.srv.cfg.Limits.MaxSolvableTries)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("generate daily board")
		http.Error(w, `{"error":"generate_failed"}`, http.StatusInternalServerError)
		return
	}
	g := game.NewFromGrid(d.srv.cfg.Board, grid)
	g.PlayerID = pid
	g.Seed = seed
	g.Daily = true
	g.StartedAt = now
	if err := d.srv.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save daily game")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	d.sessions[key] = dailySession{GameID: g.ID, Date: date}

	v := viewOf(g)
	_ = json.NewEncoder(w).Encode(newRes{GameID: g.ID, Date: date, Game: &v})
}

// pruneLocked drops sessions from earlier days. Caller holds d.mu.
func (d *dailyServer) pruneLocked(today string) {
	for k, s := range d.sessions {
		if s.Date != today {
			delete(d.sessions, k)
		}
	}
}

// -----------------------------------------------------------------------------
// /daily/toggle

// handleToggle applies a move to the player's daily game. The result is
// recorded by Server.recordWin when the move wins.
func (d *dailyServer) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	g, ok := d.srv.toggle(w, r, req, true)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(g))
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	rows, err := d.srv.daily.Leaderboard(r.Context(), date, 20)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("daily leaderboard")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
