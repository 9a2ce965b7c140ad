package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/mxboard/src/common"
	"github.com/mosaicnetworks/mxboard/src/net"
	"github.com/mosaicnetworks/mxboard/src/peers"
	"github.com/mosaicnetworks/mxboard/src/store"
	"github.com/sirupsen/logrus"
)

// Backend is the read surface of a node exposed by the Service.
type Backend interface {
	GetStats() map[string]string
	GetEntries() ([]*store.Entry, error)
	GetEntry(key string) (*store.Entry, error)
	GetPeers() []*peers.Peer
	GetConnectionStats() map[uint32]net.ConnectionStats
}

// Service exposes the board and the node statistics over HTTP. All endpoints
// are read-only.
type Service struct {
	sync.Mutex

	bindAddress string
	backend     Backend
	mux         *http.ServeMux
	server      *http.Server
	closed      bool
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, backend Backend, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		backend:     backend,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the Service's own mux.
// Several nodes can run in the same process, so the DefaultServeMux is not
// used. Applications that want to serve the API from their own server can
// mount Handler.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering MXBoard API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/entries", s.makeHandler(s.GetEntries))
	s.mux.HandleFunc("/entry/", s.makeHandler(s.GetEntry))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/connections", s.makeHandler(s.GetConnections))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call which returns when the
// service is shut down.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving MXBoard API")

	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.server = &http.Server{Addr: s.bindAddress, Handler: s.mux}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the underlying http server. Serve does nothing once the Service
// is closed.
func (s *Service) Close() error {
	s.Lock()
	defer s.Unlock()

	s.closed = true

	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.backend.GetStats())
}

// GetEntries returns the board entries in creation order.
func (s *Service) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.GetEntries()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving entries")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	writeJSON(w, entries)
}

// GetEntry ...
func (s *Service) GetEntry(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/entry/"):]

	if key == "" {
		http.Error(w, "missing entry key", http.StatusBadRequest)
		return
	}

	entry, err := s.backend.GetEntry(key)

	if err != nil {
		if common.IsStore(err, common.KeyNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		s.logger.WithError(err).Errorf("Retrieving entry %s", key)

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	writeJSON(w, entry)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.backend.GetPeers())
}

// GetConnections returns the counters of every peer connection, indexed by
// peer id.
func (s *Service) GetConnections(w http.ResponseWriter, r *http.Request) {
	stats := s.backend.GetConnectionStats()

	res := make(map[string]net.ConnectionStats, len(stats))
	for id, cs := range stats {
		res[strconv.FormatUint(uint64(id), 10)] = cs
	}

	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}
