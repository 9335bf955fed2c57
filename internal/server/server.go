package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Mihijito/uvid-api/internal/journal"
	"github.com/Mihijito/uvid-api/internal/registry"
	"github.com/Mihijito/uvid-api/internal/signal"
	"github.com/Mihijito/uvid-api/internal/ws"
	"github.com/redis/go-redis/v9"
)

// Server is the HTTP surface of the relay: the signaling WebSocket plus a
// small read-only API for operators.
type Server struct {
	addr    string
	mux     *http.ServeMux
	reg     *registry.Registry
	hub     *ws.Hub
	events  journal.Sink
	httpSrv *http.Server

	redisClient redis.Cmdable
	connOpts    []ws.ConnManagerOption
	journalSize int
}

// Option configures a Server.
type Option func(*Server)

// WithRedis stores the operator journal in Redis instead of process memory.
func WithRedis(client redis.Cmdable) Option {
	return func(s *Server) {
		s.redisClient = client
	}
}

// WithConnOptions passes tuning options through to the connection manager.
func WithConnOptions(opts ...ws.ConnManagerOption) Option {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// WithJournalSize sets how many journal events are retained.
func WithJournalSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.journalSize = n
		}
	}
}

// New creates a Server listening on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		mux:         http.NewServeMux(),
		reg:         registry.New(),
		journalSize: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.redisClient != nil {
		s.events = journal.NewRedisSink(s.redisClient, s.journalSize)
	} else {
		s.events = journal.NewStore(s.journalSize)
	}

	s.hub = ws.NewHub(s.connOpts...)
	router := signal.NewRouter(s.reg, s.hub, s.events)
	s.mux.Handle("GET /ws", ws.NewHandler(s.hub, router))
	s.routes()
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.mux}
	return s
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes every WebSocket connection and stops the HTTP listener.
// Safe to call from another goroutine while Run is blocked.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	s.mux.HandleFunc("GET /api/rooms/{id}/users", s.handleRoomUsers)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.reg.Rooms()
	if rooms == nil {
		rooms = []registry.RoomInfo{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

func (s *Server) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	names := s.reg.MemberUsernames(r.PathValue("id"))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		Connections ws.ConnStats `json:"connections"`
		Users       int          `json:"users"`
		Rooms       int          `json:"rooms"`
	}{
		Connections: s.hub.ConnMgr().Stats(),
		Users:       s.reg.UserCount(),
		Rooms:       len(s.reg.Rooms()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	events := s.events.Recent(n)
	if events == nil {
		events = []journal.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}
