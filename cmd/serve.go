package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/pipeline"
)

// maxQueryLen bounds the query parameter of /scrape.
const maxQueryLen = 256

var servePort int

// runner is the part of the pipeline the HTTP handlers need.
type runner interface {
	Run(ctx context.Context, q model.Query) (*model.RunResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve aggregations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline("serve")
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Bind, strconv.Itoa(cfg.Server.Port)),
			Handler:           buildRouter(env.Pipeline, cfg.Server, cfg.Pipeline),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.String("addr", srv.Addr), zap.String("envelope", cfg.Server.Envelope))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// buildRouter mounts /health and /scrape.
func buildRouter(run runner, sc config.ServerConfig, pc config.PipelineConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := sc.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	r.Get("/scrape", scrapeHandler(run, sc, pc))
	return r
}

func scrapeHandler(run runner, sc config.ServerConfig, pc config.PipelineConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text := strings.TrimSpace(r.URL.Query().Get("query"))
		switch {
		case text == "":
			writeError(w, http.StatusBadRequest, "query parameter is required")
			return
		case len(text) > maxQueryLen:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("query must be at most %d characters", maxQueryLen))
			return
		}

		ctx := r.Context()
		if sc.RequestTimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(sc.RequestTimeoutSecs)*time.Second)
			defer cancel()
		}

		q := model.NewQuery(text, r.URL.Query().Get("city"), pc.Country, pc.MaxResults)
		log := zap.L().With(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("query", q.Text),
		)

		res, err := run.Run(ctx, q)
		if err != nil {
			log.Error("scrape request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, failureMessage(err))
			return
		}

		log.Info("scrape request complete", zap.String("run_id", res.RunID), zap.Int("count", res.Count))
		if sc.Envelope == "array" {
			writeJSON(w, http.StatusOK, res.Results)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Count   int                    `json:"count"`
			Results []model.BusinessRecord `json:"results"`
		}{Count: res.Count, Results: res.Results})
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrSessionFailure):
		return "failed to start the browser session"
	case errors.Is(err, pipeline.ErrAllSourcesFailed):
		return "every source failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return "scrape failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
