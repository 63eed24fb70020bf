package common

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HttpOpsServer struct {
	Done        chan Done
	Server      http.Server
	ServiceLogs chan<- ServiceLog
}

func (s *HttpOpsServer) Start() error {
	s.ServiceLogs <- ServiceLogf(LogLevelInfo, "starting ops server on %s...", s.Server.Addr)
	go func() {
		<-s.Done
		if err := s.Server.Close(); err != nil {
			s.ServiceLogs <- ServiceLogf(LogLevelError, "ops server closed: %s", err)
		}
	}()

	if err := s.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start ops server: %s", err)
	}
	return nil
}

type NewHttpOpsServerOpts struct {
	Addr        string
	Done        chan Done
	ServiceLogs chan<- ServiceLog
}

// NewHttpOpsServer returns a server exposing the health and metrics
// endpoints used by deployment probes and the metrics scraper
func NewHttpOpsServer(opts NewHttpOpsServerOpts) (*HttpOpsServer, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("failed to receive a listen address")
	}
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &HttpOpsServer{
		Done: opts.Done,
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ServiceLogs: opts.ServiceLogs,
	}, nil
}
