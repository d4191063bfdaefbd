package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/identity"
	"github.com/sells-group/competitor-intel/internal/intel"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the competitor intelligence API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Service),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. Tenant identity arrives in the X-Tenant-ID
// header; the upstream gateway authenticates it, this service only scopes by
// it.
func newRouter(svc *intel.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"breakers": svc.BreakerStates(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/competitors/resolve", func(w http.ResponseWriter, req *http.Request) {
			tenantID, ok := tenantFrom(w, req)
			if !ok {
				return
			}
			var body struct {
				Name     string `json:"name"`
				URL      string `json:"url"`
				Industry string `json:"industry"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.URL == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}

			res, err := svc.ResolveCompetitor(req.Context(), tenantID, body.Name, body.URL, body.Industry)
			if err != nil {
				if eris.Is(err, identity.ErrNoIdentity) {
					writeError(w, http.StatusUnprocessableEntity, "url has no usable domain")
					return
				}
				serverError(w, "resolve competitor", err)
				return
			}
			status := http.StatusOK
			if res.EntityCreated {
				status = http.StatusCreated
			}
			writeJSON(w, status, res)
		})

		r.Get("/competitors/{entityID}/insights", func(w http.ResponseWriter, req *http.Request) {
			tenantID, ok := tenantFrom(w, req)
			if !ok {
				return
			}
			insights, err := svc.GetCompetitorInsights(req.Context(), tenantID, chi.URLParam(req, "entityID"))
			if err != nil {
				if eris.Is(err, intel.ErrNotTracked) || eris.Is(err, intel.ErrEntityNotFound) {
					writeError(w, http.StatusNotFound, "competitor not tracked")
					return
				}
				serverError(w, "get insights", err)
				return
			}
			writeJSON(w, http.StatusOK, insights)
		})

		r.Delete("/competitors/{entityID}", func(w http.ResponseWriter, req *http.Request) {
			tenantID, ok := tenantFrom(w, req)
			if !ok {
				return
			}
			err := svc.DismissCompetitor(req.Context(), tenantID, chi.URLParam(req, "entityID"))
			if err != nil {
				if eris.Is(err, intel.ErrNotTracked) {
					writeError(w, http.StatusNotFound, "competitor not tracked")
					return
				}
				serverError(w, "dismiss competitor", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Put("/uvp", func(w http.ResponseWriter, req *http.Request) {
			tenantID, ok := tenantFrom(w, req)
			if !ok {
				return
			}
			var body struct {
				Claims []string `json:"claims"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if err := svc.SetUVPClaims(req.Context(), tenantID, body.Claims); err != nil {
				serverError(w, "set uvp claims", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		// Invoked by the external scheduler.
		r.Post("/scans/sweep", func(w http.ResponseWriter, req *http.Request) {
			report, err := svc.TriggerWeeklyScan(req.Context())
			if err != nil {
				serverError(w, "sweep", err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})
	})

	return r
}

func tenantFrom(w http.ResponseWriter, req *http.Request) (string, bool) {
	tenantID := req.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
		return "", false
	}
	return tenantID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, op string, err error) {
	zap.L().Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
