package keeper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/base/oracle-keeper/runner/endpoint"
	"github.com/base/oracle-keeper/runner/metrics"
	"github.com/base/oracle-keeper/runner/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

const (
	DefaultPollInterval = 300 * time.Second
	DefaultRPCTimeout   = 30 * time.Second
	DefaultGasLimit     = uint64(1_000_000)
	DefaultChainID      = 56
)

// DefaultGasPrice is 10 gwei.
var DefaultGasPrice = big.NewInt(10 * params.GWei)

type Config struct {
	ChainID      *big.Int
	GasLimit     uint64
	GasPrice     *big.Int
	PollInterval time.Duration
	RPCTimeout   time.Duration
	DryRun       bool

	// BalanceAlertThreshold triggers a warning when the sender balance drops
	// below it. Nil or zero disables the warning.
	BalanceAlertThreshold *big.Int
}

func (c Config) Check() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("gas limit must be positive")
	}
	if c.GasPrice == nil || c.GasPrice.Sign() < 0 {
		return fmt.Errorf("gas price must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc timeout must be positive")
	}
	return nil
}

// CycleResult describes one pass of check, maybe act, then wait.
type CycleResult struct {
	Endpoint endpoint.Endpoint
	Eligible bool
	// Attempted is set when an action transaction was built and handed to the
	// endpoint (or logged, in dry-run mode).
	Attempted bool
	TxHash    common.Hash
	Err       error
	// Delay until the next eligibility check.
	Delay time.Duration
}

// Keeper polls the oracle and performs work whenever it is eligible.
type Keeper struct {
	log     log.Logger
	cfg     Config
	pool    *endpoint.Pool
	oracle  *oracle.Oracle
	creds   Credentials
	signer  types.Signer
	metrics metrics.Metricer

	after func(time.Duration) <-chan time.Time
}

func New(log log.Logger, cfg Config, pool *endpoint.Pool, o *oracle.Oracle, creds Credentials, m metrics.Metricer) (*Keeper, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Keeper{
		log:     log,
		cfg:     cfg,
		pool:    pool,
		oracle:  o,
		creds:   creds,
		signer:  types.NewEIP155Signer(cfg.ChainID),
		metrics: m,
		after:   time.After,
	}, nil
}

// Run executes cycles until ctx is cancelled. It never returns an error for a
// failed cycle.
func (k *Keeper) Run(ctx context.Context) error {
	k.log.Info("Keeper started",
		"sender", k.creds,
		"contract", k.oracle.Address(),
		"action", k.oracle.Action(),
		"endpoints", k.pool.Len(),
		"interval", k.cfg.PollInterval,
		"dry_run", k.cfg.DryRun)

	for {
		if ctx.Err() != nil {
			return nil
		}

		res := k.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-k.after(res.Delay):
		}
	}
}

// RunCycle performs one eligibility check and, if eligible, exactly one
// submission attempt. The returned delay is always the poll interval.
func (k *Keeper) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{Delay: k.cfg.PollInterval}

	ep, client, eligible, err := k.checkEligibility(ctx)
	res.Endpoint = ep
	if err != nil {
		res.Err = err
		if ctx.Err() == nil {
			k.metrics.RecordAllEndpointsFailed()
			k.log.Warn("Eligibility check failed on every endpoint, waiting for next cycle",
				"endpoints", k.pool.Len(), "retry_in", res.Delay, "err", err)
		}
		return res
	}

	res.Eligible = eligible
	k.metrics.RecordCycle(eligible)
	if !eligible {
		k.log.Debug("Oracle not workable", "endpoint", ep, "next_check_in", res.Delay)
		return res
	}

	k.log.Info("Oracle workable, submitting action", "endpoint", ep, "action", k.oracle.Action())
	res.Attempted, res.TxHash, res.Err = k.submitAction(ctx, ep, client)
	return res
}

// checkEligibility queries the current endpoint, rotating to the next one on
// every transport failure. At most one full pass over the pool is made.
func (k *Keeper) checkEligibility(ctx context.Context) (endpoint.Endpoint, endpoint.ChainClient, bool, error) {
	var (
		ep      endpoint.Endpoint
		lastErr error
	)
	for attempt := 0; attempt < k.pool.Len(); attempt++ {
		if err := ctx.Err(); err != nil {
			return ep, nil, false, err
		}

		var client endpoint.ChainClient
		ep, client, lastErr = k.client(ctx)
		if lastErr == nil {
			var eligible bool
			eligible, lastErr = k.workable(ctx, client)
			if lastErr == nil {
				return ep, client, eligible, nil
			}
		}
		if ctx.Err() != nil {
			return ep, nil, false, ctx.Err()
		}

		k.metrics.RecordTransportError(ep.Index)
		next := k.pool.Rotate()
		k.metrics.RecordRotation(next.Index)
		k.log.Error("Eligibility check failed, rotating endpoint", "endpoint", ep, "next", next, "err", lastErr)
	}
	return k.pool.Current(), nil, false, fmt.Errorf("%w: %w", ErrAllEndpointsFailed, lastErr)
}

// client returns the current endpoint's client, bounding a first-use dial by
// the per-call timeout.
func (k *Keeper) client(ctx context.Context) (endpoint.Endpoint, endpoint.ChainClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, k.cfg.RPCTimeout)
	defer cancel()
	return k.pool.Client(dialCtx)
}

func (k *Keeper) workable(ctx context.Context, client endpoint.ChainClient) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, k.cfg.RPCTimeout)
	defer cancel()

	eligible, err := k.oracle.Workable(callCtx, client, k.creds.Address)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return eligible, nil
}
