package endpoint

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/retry"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// RetryInterval is the pause between chain ID probes.
var RetryInterval = time.Second

// WaitForChainID asks the pool for eth_chainId, rotating past endpoints that
// fail, until one answers or every endpoint has been tried once.
func WaitForChainID(ctx context.Context, log log.Logger, pool *Pool, callTimeout time.Duration) (*big.Int, error) {
	chainID, err := retry.Do(ctx, pool.Len(), retry.Fixed(RetryInterval), func() (*big.Int, error) {
		dialCtx, cancel := context.WithTimeout(ctx, callTimeout)
		ep, client, err := pool.Client(dialCtx)
		cancel()
		if err == nil {
			callCtx, cancel := context.WithTimeout(ctx, callTimeout)
			var id *big.Int
			id, err = client.ChainID(callCtx)
			cancel()
			if err == nil {
				return id, nil
			}
		}

		next := pool.Rotate()
		log.Warn("Endpoint did not answer chain id probe", "endpoint", ep, "next", next, "err", err)
		return nil, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "no endpoint answered chain id probe")
	}
	return chainID, nil
}
