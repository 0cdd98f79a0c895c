// Package web provides an HTTP status server for the localio daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	router := httprouter.New()
	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/slot/:region/:slot", s.handleSlot)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// SlotJSON is the response of /slot/:region/:slot.
type SlotJSON struct {
	Region string `json:"region"`
	Slot   int    `json:"slot"`
	Value  int    `json:"value"`
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	region, err := memmap.ParseRegion(p.ByName("region"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slot, err := strconv.Atoi(p.ByName("slot"))
	if err != nil || slot < 0 {
		http.Error(w, "invalid slot", http.StatusBadRequest)
		return
	}

	snap := s.tracker.Snapshot()
	var values []byte
	switch region {
	case memmap.RegionIn:
		values = snap.In
	case memmap.RegionOut:
		values = snap.Out
	case memmap.RegionAuxIn:
		values = snap.AuxIn
	}
	if slot >= len(values) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SlotJSON{Region: string(region), Slot: slot, Value: int(values[slot])})
}
