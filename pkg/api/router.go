package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Router builds the relay's public HTTP surface.
//
//	/health              any method
//	GET  /account        stored record lookup
//	GET  /transactions   Paddle transactions proxy
//	POST /portal         Paddle customer portal session
//	POST /webhook/paddle Paddle webhook ingestion
//
// Every other path or method answers 404 not_found.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(corsHeaders)
	for _, mw := range h.config.Middlewares {
		r.Use(mw)
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	r.HandleFunc("/health", h.Health)
	r.Get("/account", h.GetAccount)
	r.Get("/transactions", h.ListTransactions)
	r.Post("/portal", h.CreatePortal)
	r.Method(http.MethodPost, "/webhook/paddle", h.config.Provider.WebhookHandler())

	return r
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns handler panics into a JSON 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				h.config.Logger.Error("panic serving request",
					accounts.F("path", r.URL.Path),
					accounts.F("request_id", middleware.GetReqID(r.Context())),
					accounts.F("panic", rvr),
				)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
