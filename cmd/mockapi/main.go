// mockapi is a local stand-in for the vector-indexing service, answering the
// ingest contract so the pipeline can be exercised without the real backend.
// MOCKAPI_FAIL_EVERY=n makes every n-th ingest request fail with a 500 for
// retry testing.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/logger"
	"github.com/vitalstream/health-ingest/internal/models"
)

type server struct {
	log       *zap.Logger
	failEvery int64
	requests  atomic.Int64
	stored    atomic.Int64
}

func main() {
	zapLogger, err := logger.New(false)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	addr := os.Getenv("MOCKAPI_ADDR")
	if addr == "" {
		addr = ":5000"
	}

	failEvery := int64(0)
	if v := os.Getenv("MOCKAPI_FAIL_EVERY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			failEvery = n
		}
	}

	s := &server{log: zapLogger, failEvery: failEvery}

	r := mux.NewRouter()
	r.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	handler := cors.Default().Handler(r)

	zapLogger.Info("mock ingest endpoint listening",
		zap.String("addr", addr),
		zap.Int64("fail_every", failEvery),
	)
	if err := http.ListenAndServe(addr, handler); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	n := s.requests.Add(1)

	var env models.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Text == "" {
		s.log.Warn("rejecting malformed ingest request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "JSON body required"})
		return
	}

	if s.failEvery > 0 && n%s.failEvery == 0 {
		s.log.Info("injecting failure", zap.Int64("request", n))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	stored := s.stored.Add(1)
	s.log.Info("stored summary",
		zap.String("user_id", env.Meta.UserID),
		zap.String("date", env.Meta.Date),
		zap.Int64("total", stored),
	)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stored": 1})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
