package service

import (
	"context"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/base/oracle-keeper/runner"
	"github.com/base/oracle-keeper/runner/config"
)

var ErrAlreadyStopped = errors.New("already stopped")

type Service interface {
	cliapp.Lifecycle
	Kill() error
}

type service struct {
	config  config.Config
	version string
	log     log.Logger

	runner runner.Service
	cancel context.CancelFunc
	done   chan struct{}

	stopped atomic.Bool
}

func NewService(version string, cfg config.Config, log log.Logger) (Service, error) {
	r, err := runner.NewService(version, cfg, log)
	if err != nil {
		return nil, err
	}
	return newService(version, cfg, log, r), nil
}

func newService(version string, cfg config.Config, log log.Logger, r runner.Service) *service {
	return &service{
		config:  cfg,
		version: version,
		log:     log,
		runner:  r,
		done:    make(chan struct{}),
	}
}

// Start runs the preflight checks and launches the keeper loop in the
// background. The loop outlives ctx; it is stopped by Stop.
func (s *service) Start(ctx context.Context) error {
	s.log.Info("Starting", "version", s.version)

	if err := s.runner.Setup(ctx); err != nil {
		return errors.Wrap(err, "failed to set up keeper")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		if err := s.runner.Run(runCtx); err != nil {
			s.log.Error("Keeper loop exited", "err", err)
		}
	}()
	return nil
}

// Stopped returns if the service as a whole is stopped.
func (s *service) Stopped() bool {
	return s.stopped.Load()
}

// Kill is a convenience method to forcefully, non-gracefully, stop the Service.
func (s *service) Kill() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return s.Stop(ctx)
}

// Stop cancels the keeper loop and waits for the in-flight call, if any, to
// return. If the provided ctx is cancelled first, resources are released
// without waiting.
func (s *service) Stop(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrAlreadyStopped
	}
	s.log.Info("Service stopping")

	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			s.log.Warn("Keeper loop did not exit before stop deadline")
		}
	}

	result := s.runner.Close(ctx)
	s.stopped.Store(true)
	s.log.Info("Service stopped")
	return result
}
