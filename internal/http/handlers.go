package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/intervals"
	"github.com/hperssn/dojo/internal/runner"
)

func getTimer(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn, err := m.Runner(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, rn.Snapshot(), http.StatusOK)
	}
}

func timerCommand(m *runner.Manager, cmd func(*runner.Runner) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn, err := m.Runner(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		if err := cmd(rn); err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, rn.Snapshot(), http.StatusOK)
	}
}

func getMetronome(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn, err := m.Runner(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, rn.Snapshot().Metronome, http.StatusOK)
	}
}

func listIntervals(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := m.Intervals(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, store.List(r.Context()), http.StatusOK)
	}
}

// editIntervals runs edit through the manager so the user's run restarts
// with the saved list.
func editIntervals(m *runner.Manager, w http.ResponseWriter, r *http.Request, edit func(*intervals.Store) ([]domain.IntervalDefinition, error)) {
	defs, err := m.EditIntervals(r.Context(), GetUserID(r), edit)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, defs, http.StatusOK)
}

func saveIntervals(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var defs []domain.IntervalDefinition
		if err := decodeBody(r, &defs); err != nil {
			fail(w, r, err)
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Save(r.Context(), defs)
		})
	}
}

func addInterval(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var def domain.IntervalDefinition
		if err := decodeBody(r, &def); err != nil {
			fail(w, r, err)
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Add(r.Context(), def)
		})
	}
}

func updateInterval(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := parseIndex(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		var def domain.IntervalDefinition
		if err := decodeBody(r, &def); err != nil {
			fail(w, r, err)
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Update(r.Context(), idx, def)
		})
	}
}

func deleteInterval(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := parseIndex(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Delete(r.Context(), idx)
		})
	}
}

func copyInterval(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := parseIndex(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Copy(r.Context(), idx)
		})
	}
}

func moveInterval(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseIndex(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		var req struct {
			To *int `json:"to"`
		}
		if err := decodeBody(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if req.To == nil {
			fail(w, r, fmt.Errorf("%w: missing target index", errBadRequest))
			return
		}
		editIntervals(m, w, r, func(s *intervals.Store) ([]domain.IntervalDefinition, error) {
			return s.Move(r.Context(), from, *req.To)
		})
	}
}

func listTempos(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := m.Intervals(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		tempos := store.Tempos(r.Context())
		if tempos == nil {
			tempos = domain.TempoSet{}
		}
		respondJSON(w, tempos, http.StatusOK)
	}
}

func addTempo(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t domain.Tempo
		if err := decodeBody(r, &t); err != nil {
			fail(w, r, err)
			return
		}
		set, err := m.EditTempos(r.Context(), GetUserID(r), func(s *intervals.Store) (domain.TempoSet, error) {
			return s.AddTempo(r.Context(), t)
		})
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, set, http.StatusCreated)
	}
}

func deleteTempo(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		set, err := m.DeleteTempo(r.Context(), GetUserID(r), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, set, http.StatusOK)
	}
}

func getHistory(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				fail(w, r, fmt.Errorf("%w: since must be RFC3339", errBadRequest))
				return
			}
			since = parsed
		}

		rec, err := m.Recorder(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		history, err := rec.History(r.Context(), since)
		if err != nil {
			fail(w, r, err)
			return
		}
		if history == nil {
			history = []domain.SessionHistoryEntry{}
		}
		respondJSON(w, history, http.StatusOK)
	}
}

func getHistoryStats(m *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := m.Recorder(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		stats, err := rec.Stats(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, stats, http.StatusOK)
	}
}

func parseIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid interval index", errBadRequest)
	}
	return idx, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}
