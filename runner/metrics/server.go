package metrics

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/base/oracle-keeper/runner/logger"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the keeper metrics on /metrics.
type Server struct {
	log      log.Logger
	server   *http.Server
	listener net.Listener
	errLog   *logger.LogWriter
}

// StartServer binds addr:port and serves the registry of m in the background.
func StartServer(l log.Logger, m *Metrics, addr string, port int) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	errLog := logger.NewLogWriter(l, log.LevelWarn)
	s := &Server{
		log:      l,
		listener: listener,
		errLog:   errLog,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          stdlog.New(errLog, "", 0),
		},
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Metrics server error", "err", err)
		}
	}()

	l.Info("Metrics server started", "addr", listener.Addr().String())
	return s, nil
}

// Addr returns the bound address, useful when port 0 was requested.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	_ = s.errLog.Close()
	return err
}
