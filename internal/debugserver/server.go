// Package debugserver exposes the validator's state over a small HTTP
// surface for bench debugging and fleet monitoring: liveness, boot state and
// prometheus metrics.
package debugserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/bootguard/internal/bootguard"
	"github.com/autopeer-io/bootguard/internal/platform"
	"github.com/autopeer-io/bootguard/pkg/log"
	"github.com/autopeer-io/bootguard/pkg/options"
	"github.com/autopeer-io/bootguard/pkg/version"
)

// BootState is the JSON document served at /bootstate.
type BootState struct {
	State            string `json:"state"`
	BootCount        uint32 `json:"bootCount"`
	FactoryPartition bool   `json:"factoryPartition"`
	RunningPartition string `json:"runningPartition,omitempty"`
	RunningVersion   string `json:"runningVersion,omitempty"`
	FirmwareVersion  string `json:"firmwareVersion"`
}

// Server serves the debug HTTP endpoints.
type Server struct {
	network string
	server  *http.Server
}

// NewServer builds the debug server around a validated boot.
func NewServer(opts *options.HttpOptions, v *bootguard.Validator, parts platform.PartitionService) *Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/bootstate", func(w http.ResponseWriter, _ *http.Request) {
		state := BootState{
			State:            v.State(),
			BootCount:        v.BootCount(),
			FactoryPartition: v.IsFactoryPartition(),
			FirmwareVersion:  version.Get().GitVersion,
		}
		if running, err := parts.RunningPartition(); err == nil {
			state.RunningPartition = running.Label
			state.RunningVersion = v.PartitionVersion(running.Label)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			log.Error(err, "Failed to encode boot state")
		}
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &Server{
		network: opts.Network,
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: opts.Timeout,
		},
	}
}

// Handler returns the route handler backing the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting debug HTTP server", "network", s.network, "addr", s.server.Addr)

	ln, err := net.Listen(s.network, s.server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
