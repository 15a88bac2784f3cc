// Package http exposes the budgeting client as a JSON API: domain hooks that
// enqueue mutations, a read surface over the optimistic state, and the queue
// inspection endpoints.
package http

import (
	"net/http"
	"time"

	"kudi/internal/metrics"
	"kudi/internal/middleware/trace"
	"kudi/internal/queue"
	"kudi/internal/services"
	"kudi/internal/syncer"
)

type Server struct {
	http.Server
	service      *services.BudgetService
	queue        *queue.Store
	executor     *syncer.Executor
	materializer *services.Materializer
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, service *services.BudgetService, queueStore *queue.Store, executor *syncer.Executor, materializer *services.Materializer) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        trace.Middleware(mux),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		service:      service,
		queue:        queueStore,
		executor:     executor,
		materializer: materializer,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("PUT /api/users/{user}/profile", s.track(s.handleUpsertProfile))
	mux.HandleFunc("POST /api/users/{user}/income-sources", s.track(s.handleUpsertIncomeSource))
	mux.HandleFunc("DELETE /api/users/{user}/income-sources/{id}", s.track(s.handleDeleteIncomeSource))
	mux.HandleFunc("POST /api/users/{user}/cycles", s.track(s.handleUpsertCycle))
	mux.HandleFunc("POST /api/users/{user}/cycles/{id}/reset", s.track(s.handleResetBudget))
	mux.HandleFunc("POST /api/users/{user}/categories", s.track(s.handleUpsertCategory))
	mux.HandleFunc("DELETE /api/users/{user}/categories/{id}", s.track(s.handleDeleteCategory))
	mux.HandleFunc("POST /api/users/{user}/transactions", s.track(s.handleRecordTransaction))
	mux.HandleFunc("POST /api/users/{user}/reallocations", s.track(s.handleReallocate))

	mux.HandleFunc("POST /api/users/{user}/debts", s.track(s.handleCreateDebt))
	mux.HandleFunc("PUT /api/users/{user}/debts/{id}", s.track(s.handleUpdateDebt))
	mux.HandleFunc("DELETE /api/users/{user}/debts/{id}", s.track(s.handleDeleteDebt))
	mux.HandleFunc("POST /api/users/{user}/debts/{id}/payments", s.track(s.handleRecordDebtPayment))

	mux.HandleFunc("POST /api/users/{user}/recurring-expenses", s.track(s.handleCreateRecurringExpense))
	mux.HandleFunc("PUT /api/users/{user}/recurring-expenses/{id}", s.track(s.handleUpdateRecurringExpense))
	mux.HandleFunc("DELETE /api/users/{user}/recurring-expenses/{id}", s.track(s.handleDeleteRecurringExpense))

	mux.HandleFunc("GET /api/users/{user}/state", s.track(s.handleState))
	mux.HandleFunc("GET /api/users/{user}/queue", s.track(s.handleListQueue))
	mux.HandleFunc("POST /api/users/{user}/queue/flush", s.track(s.handleFlushQueue))
	mux.HandleFunc("POST /api/users/{user}/queue/{id}/retry", s.track(s.handleRetryMutation))
	mux.HandleFunc("POST /api/users/{user}/queue/clear", s.track(s.handleClearQueue))

	return s
}

// track registers the request's user with the materializer so its recurring
// expenses join the periodic sweep.
func (s *Server) track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.materializer != nil {
			if userID := r.PathValue("user"); userID != "" {
				s.materializer.Track(userID)
			}
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
