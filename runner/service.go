package runner

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/base/oracle-keeper/runner/config"
	"github.com/base/oracle-keeper/runner/endpoint"
	"github.com/base/oracle-keeper/runner/keeper"
	"github.com/base/oracle-keeper/runner/metrics"
	"github.com/base/oracle-keeper/runner/oracle"
)

var ErrChainIDMismatch = errors.New("chain id mismatch")

// Service wires the endpoint pool, oracle binding and keeper loop together.
type Service interface {
	// Setup starts the metrics server and checks the endpoints serve the
	// configured chain.
	Setup(ctx context.Context) error
	// Run blocks, polling the oracle until ctx is cancelled.
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

type service struct {
	config  config.Config
	version string
	log     log.Logger

	pool          *endpoint.Pool
	keeper        *keeper.Keeper
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
}

func NewService(version string, cfg config.Config, log log.Logger) (Service, error) {
	return newService(version, cfg, log, endpoint.DialEthClient)
}

func newService(version string, cfg config.Config, log log.Logger, dial endpoint.DialFunc) (*service, error) {
	pool, err := endpoint.NewPool(cfg.RPCURLs(), dial)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create endpoint pool")
	}

	o, err := oracle.New(cfg.ContractAddress(), cfg.ActionMethod())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create oracle binding")
	}

	creds, err := keeper.NewCredentials(cfg.PrivateKey(), cfg.AccountAddress())
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	m.RecordInfo(version)

	k, err := keeper.New(log, cfg.KeeperConfig(), pool, o, creds, m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create keeper")
	}

	return &service{
		config:  cfg,
		version: version,
		log:     log,
		pool:    pool,
		keeper:  k,
		metrics: m,
	}, nil
}

func (s *service) Setup(ctx context.Context) error {
	if mc := s.config.MetricsConfig(); mc.Enabled {
		srv, err := metrics.StartServer(s.log, s.metrics, mc.Addr, mc.Port)
		if err != nil {
			return errors.Wrap(err, "failed to start metrics server")
		}
		s.metricsServer = srv
	}

	want := s.config.KeeperConfig().ChainID
	got, err := endpoint.WaitForChainID(ctx, s.log, s.pool, s.config.KeeperConfig().RPCTimeout)
	s.metrics.RecordRotation(s.pool.Index())
	if err != nil {
		// the loop rotates on its own; an outage at boot is not fatal
		s.log.Warn("Could not verify chain id, starting anyway", "err", err)
		return nil
	}
	if got.Cmp(want) != 0 {
		return errors.Wrapf(ErrChainIDMismatch, "endpoint %s reports %s, configured %s", s.pool.Current(), got, want)
	}
	s.log.Info("Verified chain id", "chain_id", got, "endpoint", s.pool.Current())
	return nil
}

func (s *service) Run(ctx context.Context) error {
	return s.keeper.Run(ctx)
}

func (s *service) Close(ctx context.Context) error {
	s.pool.Close()
	if s.metricsServer != nil {
		return s.metricsServer.Stop(ctx)
	}
	return nil
}
