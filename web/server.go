// Package web serves the collector's query API and a minimal status
// page over HTTP.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/filetrack/removetrace/database"
	"github.com/filetrack/removetrace/platform"
	"github.com/filetrack/removetrace/sigma"
)

type Server struct {
	db         *database.DB
	detector   *sigma.Detector
	monitor    platform.Monitor
	listenAddr string
}

func NewServer(db *database.DB, detector *sigma.Detector, monitor platform.Monitor, listenAddr string) *Server {
	return &Server{
		db:         db,
		detector:   detector,
		monitor:    monitor,
		listenAddr: listenAddr,
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Debug handler that wraps other handlers and logs request details
	debugHandler := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Printf("[%s] %s %s\n", time.Now().Format("15:04:05"), r.Method, r.URL.Path)
			h(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", debugHandler(s.handleIndex))
	mux.HandleFunc("/api/removals", debugHandler(s.handleRemovals))
	mux.HandleFunc("/api/matches", debugHandler(s.handleMatches))
	mux.HandleFunc("/api/stats", debugHandler(s.handleStats))

	srv := &http.Server{
		Addr:    s.listenAddr,
		Handler: mux,
	}

	fmt.Printf("Starting web server on %s\n", s.listenAddr)

	// Graceful shutdown goroutine
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	tmpl := template.Must(template.New("index").Parse(indexTemplate))
	if err := tmpl.Execute(w, nil); err != nil {
		log.Printf("Error rendering index: %v", err)
	}
}

// handleRemovals answers /api/removals with the newest journal rows.
// With dev and ino parameters it returns the history of one object.
func (s *Server) handleRemovals(w http.ResponseWriter, r *http.Request) {
	devStr := r.URL.Query().Get("dev")
	inoStr := r.URL.Query().Get("ino")

	if devStr != "" && inoStr != "" {
		dev, err1 := strconv.ParseUint(devStr, 10, 64)
		ino, err2 := strconv.ParseUint(inoStr, 10, 64)
		if err1 != nil || err2 != nil {
			http.Error(w, "invalid dev or ino", http.StatusBadRequest)
			return
		}
		records, err := s.db.RemovalsByIdentity(dev, ino)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := s.db.RecentRemovals(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := s.db.RecentMatches(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := StatsResponse{}

	count, err := s.db.CountRemovals()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats.JournaledRemovals = count

	if s.detector != nil {
		stats.LoadedRules = s.detector.RuleCount()
	}

	if s.monitor != nil {
		kernel, err := s.monitor.Stats()
		if err == nil {
			stats.Kernel = &kernel
		}
	}

	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
