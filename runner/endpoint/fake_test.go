package endpoint

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type stubClient struct {
	chainID *big.Int
	err     error
	closed  bool
}

func (s *stubClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, s.err
}

func (s *stubClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, s.err
}

func (s *stubClient) SendTransaction(context.Context, *types.Transaction) error {
	return s.err
}

func (s *stubClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, s.err
}

func (s *stubClient) ChainID(context.Context) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chainID, nil
}

func (s *stubClient) Close() {
	s.closed = true
}

var errUnreachable = errors.New("connection refused")

func stubDialer(clients map[string]*stubClient, dialed *[]string) DialFunc {
	return func(_ context.Context, rawURL string) (ChainClient, error) {
		if dialed != nil {
			*dialed = append(*dialed, rawURL)
		}
		c, ok := clients[rawURL]
		if !ok {
			return nil, errUnreachable
		}
		return c, nil
	}
}

// hangingDialer blocks on the listed URLs until the dial context ends, like a
// websocket endpoint that accepts the connection but never completes the
// handshake.
func hangingDialer(hang map[string]bool, clients map[string]*stubClient) DialFunc {
	next := stubDialer(clients, nil)
	return func(ctx context.Context, rawURL string) (ChainClient, error) {
		if hang[rawURL] {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return next(ctx, rawURL)
	}
}
