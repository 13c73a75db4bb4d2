package keeper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/base/oracle-keeper/runner/endpoint"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// submitAction fetches the nonce, signs the action transaction and hands it to
// the same endpoint that answered the eligibility check. It never retries.
func (k *Keeper) submitAction(ctx context.Context, ep endpoint.Endpoint, client endpoint.ChainClient) (bool, common.Hash, error) {
	k.watchBalance(ctx, ep, client)

	nonce, err := k.fetchNonce(ctx, client)
	if err != nil {
		k.metrics.RecordNonceFetchError()
		k.log.Error("Failed to fetch nonce, skipping action this cycle", "endpoint", ep, "err", err)
		return false, common.Hash{}, err
	}

	tx, err := k.buildActionTx(nonce)
	if err != nil {
		k.metrics.RecordSubmission(false)
		k.log.Error("Failed to build action transaction", "err", err)
		return false, common.Hash{}, err
	}

	if k.cfg.DryRun {
		k.log.Info("Dry run, not broadcasting action transaction", "tx", tx.Hash(), "nonce", nonce)
		k.log.Debug("Signed action transaction", "dump", spew.Sdump(tx))
		return true, tx.Hash(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, k.cfg.RPCTimeout)
	defer cancel()
	if err := client.SendTransaction(callCtx, tx); err != nil {
		k.metrics.RecordSubmission(false)
		k.log.Error("Failed to submit action transaction", "endpoint", ep, "tx", tx.Hash(), "nonce", nonce, "err", err)
		return true, tx.Hash(), fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	k.metrics.RecordSubmission(true)
	k.log.Info("Submitted action transaction", "endpoint", ep, "tx", tx.Hash(), "nonce", nonce)
	return true, tx.Hash(), nil
}

func (k *Keeper) fetchNonce(ctx context.Context, client endpoint.ChainClient) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, k.cfg.RPCTimeout)
	defer cancel()

	nonce, err := client.PendingNonceAt(callCtx, k.creds.Address)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNonceFetch, err)
	}
	return nonce, nil
}

// buildActionTx returns the signed legacy transaction calling the action
// method with zero value.
func (k *Keeper) buildActionTx(nonce uint64) (*types.Transaction, error) {
	data, err := k.oracle.ActionData()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	to := k.oracle.Address()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      k.cfg.GasLimit,
		GasPrice: new(big.Int).Set(k.cfg.GasPrice),
		Data:     data,
	})

	signed, err := types.SignTx(tx, k.signer, k.creds.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, errors.Wrap(err, "failed to sign transaction"))
	}
	return signed, nil
}

// watchBalance reports the sender balance and warns when it falls below the
// configured threshold. Failures are not fatal to the submission.
func (k *Keeper) watchBalance(ctx context.Context, ep endpoint.Endpoint, client endpoint.ChainClient) {
	callCtx, cancel := context.WithTimeout(ctx, k.cfg.RPCTimeout)
	defer cancel()

	balance, err := client.BalanceAt(callCtx, k.creds.Address, nil)
	if err != nil {
		k.log.Debug("Failed to read sender balance", "endpoint", ep, "err", err)
		return
	}
	k.metrics.RecordBalance(balance)

	threshold := k.cfg.BalanceAlertThreshold
	if threshold != nil && threshold.Sign() > 0 && balance.Cmp(threshold) < 0 {
		k.log.Warn("Sender balance below alert threshold", "sender", k.creds, "balance", balance, "threshold", threshold)
	}
}
