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

	"github.com/sells-group/signals-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			snap, err := env.Collector.Collect(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"mode":           snap.Mode,
				"leads_by_state": snap.LeadsByState,
				"pending_review": snap.PendingReview,
				"sent_last_hour": snap.SentLastHour,
			})
		})

		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			snap, err := env.Collector.Collect(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/outbox", func(w http.ResponseWriter, req *http.Request) {
			status := model.PendingStatus(req.URL.Query().Get("status"))
			if status == "" {
				status = model.PendingOpen
			}
			pending, err := env.Store.ListPending(req.Context(), status)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, pending)
		})

		r.Post("/cycle", func(w http.ResponseWriter, req *http.Request) {
			// cycles can run for minutes; kick one off and return
			go func() {
				result, err := env.Pipeline.RunCycle(ctx)
				if err != nil {
					zap.L().Error("triggered cycle failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered cycle complete",
					zap.Int("promoted", result.Promoted),
					zap.Int("dispatched", result.Enriched.Dispatched))
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		r.Post("/mode", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Mode string `json:"mode"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			if err := env.Pipeline.SetMode(req.Context(), model.Mode(body.Mode)); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"mode": body.Mode})
		})

		r.Post("/sources/{name}/reset", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if err := env.Store.ResetAdapter(req.Context(), name); err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"adapter": name, "status": "reset"})
		})

		r.Post("/leads/{id}/requeue", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := env.Store.RequeueLead(req.Context(), id, model.StateUnenriched); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			note := model.MissionLogEntry{
				Phase:   model.PhaseArchive,
				Action:  "requeue",
				Result:  string(model.StateUnenriched),
				Detail:  "operator requeue",
				Success: true,
			}
			if err := env.Store.RecordAttempt(req.Context(), id, note, nil); err != nil {
				zap.L().Warn("log requeue failed", zap.String("lead_id", id), zap.Error(err))
			}
			writeJSON(w, http.StatusOK, map[string]string{"lead_id": id, "status": "requeued"})
		})

		r.Post("/outbox/{id}/approve", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := env.Gate.ApprovePending(req.Context(), id); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"pending_id": id, "status": "approved"})
		})

		r.Post("/outbox/{id}/reject", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := env.Gate.RejectPending(req.Context(), id); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"pending_id": id, "status": "rejected"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
