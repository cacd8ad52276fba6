package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ehs/incidentctl/internal/model"
	"github.com/meridian-ehs/incidentctl/internal/rules"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the incident intake HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		engine, err := initEngine()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(engine, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the intake API over the engine and store.
func newRouter(engine *rules.Engine, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/incidents", handleCreateIncident(engine, st))
		r.Get("/incidents", handleListIncidents(st))
		r.Get("/incidents/{id}", handleGetIncident(st))
		r.Put("/incidents/{id}", handleUpdateIncident(engine, st))
		r.Post("/incidents/{id}/classify", handleReclassify(engine, st))
		r.Get("/dashboard", handleDashboard(st))
	})

	return r
}

// requestLogger logs one line per request, tagged with the chi request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func handleCreateIncident(engine *rules.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec model.ImpactRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		applyRecordDefaults(&rec)

		result, err := engine.Classify(&rec)
		if err != nil {
			writeClassifyError(w, err)
			return
		}

		inc, err := st.CreateIncident(r.Context(), rec)
		if err != nil {
			zap.L().Error("create incident failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}
		saved, err := st.SaveClassification(r.Context(), inc.ID, result)
		if err != nil {
			zap.L().Error("save classification failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}
		inc.Latest = saved

		writeJSON(w, http.StatusCreated, inc)
	}
}

func handleListIncidents(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.IncidentFilter{
			Company: r.URL.Query().Get("company"),
			Limit:   queryInt(r, "limit", 100),
			Offset:  queryInt(r, "offset", 0),
		}
		incidents, err := st.ListIncidents(r.Context(), filter)
		if err != nil {
			zap.L().Error("list incidents failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
	}
}

func handleGetIncident(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inc, err := st.GetIncident(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		writeJSON(w, http.StatusOK, inc)
	}
}

// handleUpdateIncident replaces the stored record (edit by re-submission) and
// reclassifies it.
func handleUpdateIncident(engine *rules.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var rec model.ImpactRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		applyRecordDefaults(&rec)

		result, err := engine.Classify(&rec)
		if err != nil {
			writeClassifyError(w, err)
			return
		}

		if err := st.UpdateIncident(r.Context(), id, rec); err != nil {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		saved, err := st.SaveClassification(r.Context(), id, result)
		if err != nil {
			zap.L().Error("save classification failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

// handleReclassify reruns the engine on the stored record, e.g. after a rule
// table change.
func handleReclassify(engine *rules.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		inc, err := st.GetIncident(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}

		result, err := engine.Classify(&inc.Record)
		if err != nil {
			writeClassifyError(w, err)
			return
		}

		saved, err := st.SaveClassification(r.Context(), id, result)
		if err != nil {
			zap.L().Error("save classification failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleDashboard(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := st.Summary(r.Context())
		if err != nil {
			zap.L().Error("dashboard summary failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store failure")
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// writeClassifyError distinguishes user-correctable validation errors from
// engine faults.
func writeClassifyError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":      verr.Error(),
			"field":      verr.Field,
			"constraint": verr.Constraint,
		})
		return
	}
	zap.L().Error("classification failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "classification failure")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}
