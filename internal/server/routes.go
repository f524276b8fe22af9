package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	h := s.app.DividendsHandler

	mux.HandleFunc("/", h.IndexHandler)            // GET - table, refreshed when stale
	mux.HandleFunc("/refresh", h.RefreshHandler)   // GET|POST - run the pipeline now
	mux.HandleFunc("/download", h.DownloadHandler) // GET - CSV attachment
	mux.HandleFunc("/data", h.DataHandler)         // GET - JSON rows
	mux.HandleFunc("/runs", h.RunsHandler)         // GET - run history

	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
