package keeper

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/base/oracle-keeper/runner/endpoint"
	"github.com/base/oracle-keeper/runner/metrics"
	"github.com/base/oracle-keeper/runner/oracle"
	"github.com/ethereum-optimism/optimism/op-service/testlog"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

var errRPC = errors.New("dial tcp: connection refused")

type fakeClient struct {
	mu sync.Mutex

	workable   bool
	callErr    error
	nonce      uint64
	nonceErr   error
	sendErr    error
	balance    *big.Int
	balanceErr error

	// hang* make the matching call block until its context ends.
	hangDial  bool
	hangCall  bool
	hangNonce bool
	hangSend  bool

	calls      int
	nonceCalls int
	sent       []*types.Transaction
	events     []string
}

func (f *fakeClient) CallContract(ctx context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.events = append(f.events, "call")
	if f.hangCall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.workable {
		return common.LeftPadBytes([]byte{1}, 32), nil
	}
	return make([]byte, 32), nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	f.events = append(f.events, "nonce")
	if f.hangNonce {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.nonce, f.nonceErr
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.events = append(f.events, "send")
	if f.hangSend {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.sendErr
}

func (f *fakeClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(DefaultChainID), nil
}

func (f *fakeClient) Close() {}

type harness struct {
	keeper  *Keeper
	pool    *endpoint.Pool
	clients []*fakeClient
	creds   Credentials
}

func testConfig() Config {
	return Config{
		ChainID:      big.NewInt(DefaultChainID),
		GasLimit:     DefaultGasLimit,
		GasPrice:     DefaultGasPrice,
		PollInterval: 5 * time.Minute,
		RPCTimeout:   time.Second,
	}
}

func newHarness(t *testing.T, cfg Config, clients ...*fakeClient) *harness {
	t.Helper()

	urls := make([]string, len(clients))
	byURL := make(map[string]*fakeClient, len(clients))
	for i, c := range clients {
		urls[i] = "http://node" + string(rune('1'+i))
		byURL[urls[i]] = c
	}

	pool, err := endpoint.NewPool(urls, func(ctx context.Context, rawURL string) (endpoint.ChainClient, error) {
		c := byURL[rawURL]
		if c.hangDial {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return c, nil
	})
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	creds, err := NewCredentials(key, common.Address{})
	require.NoError(t, err)

	o, err := oracle.New(oracle.DefaultAddress, oracle.WorkMethod)
	require.NoError(t, err)

	k, err := New(testlog.Logger(t, log.LevelDebug), cfg, pool, o, creds, nil)
	require.NoError(t, err)

	return &harness{keeper: k, pool: pool, clients: clients, creds: creds}
}

func (h *harness) totalSent() int {
	n := 0
	for _, c := range h.clients {
		n += len(c.sent)
	}
	return n
}

func TestIneligibleSchedulesCheckWithoutSubmission(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg, &fakeClient{workable: false})

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.False(t, res.Eligible)
	require.False(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Zero(t, h.clients[0].nonceCalls)
	require.Zero(t, h.totalSent())
}

func TestRepeatedIneligibleNeverSubmits(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeClient{workable: false}, &fakeClient{workable: false})

	for i := 0; i < 20; i++ {
		res := h.keeper.RunCycle(context.Background())
		require.NoError(t, res.Err)
		require.False(t, res.Attempted)
	}
	require.Equal(t, 20, h.clients[0].calls)
	require.Zero(t, h.clients[1].calls)
	require.Zero(t, h.totalSent())
}

func TestEligibleSubmitsActionWithFetchedNonce(t *testing.T) {
	cfg := testConfig()
	client := &fakeClient{workable: true, nonce: 42}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.True(t, res.Eligible)
	require.True(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Equal(t, []string{"call", "nonce", "send"}, client.events)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	require.Equal(t, res.TxHash, tx.Hash())
	require.Equal(t, uint64(42), tx.Nonce())
	require.Equal(t, oracle.DefaultAddress, *tx.To())
	require.Zero(t, tx.Value().Sign())
	require.Equal(t, DefaultGasLimit, tx.Gas())
	require.Equal(t, 0, DefaultGasPrice.Cmp(tx.GasPrice()))
	require.Equal(t, crypto.Keccak256([]byte("work()"))[:4], tx.Data())
	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	require.Equal(t, int64(DefaultChainID), tx.ChainId().Int64())

	sender, err := types.Sender(types.NewEIP155Signer(cfg.ChainID), tx)
	require.NoError(t, err)
	require.Equal(t, h.creds.Address, sender)
}

func TestSubmissionFailureStillSchedulesNextCheck(t *testing.T) {
	cfg := testConfig()
	client := &fakeClient{workable: true, nonce: 7, sendErr: errors.New("replacement transaction underpriced")}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.ErrorIs(t, res.Err, ErrSubmission)
	require.True(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Len(t, client.sent, 1, "submission must not be retried")
	require.Equal(t, 0, h.pool.Index(), "submission failure must not rotate the pool")
}

func TestNonceFetchFailureSkipsSubmission(t *testing.T) {
	cfg := testConfig()
	client := &fakeClient{workable: true, nonceErr: errRPC}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.ErrorIs(t, res.Err, ErrNonceFetch)
	require.True(t, res.Eligible)
	require.False(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Equal(t, 1, client.nonceCalls)
	require.Zero(t, h.totalSent())
}

func TestFailoverToThirdEndpoint(t *testing.T) {
	first := &fakeClient{callErr: errRPC}
	second := &fakeClient{callErr: errors.New("invalid character '<' looking for beginning of value")}
	third := &fakeClient{workable: true, nonce: 3}
	h := newHarness(t, testConfig(), first, second, third)

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Endpoint.Index)
	require.Equal(t, 2, h.pool.Index())

	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
	require.Zero(t, first.nonceCalls)
	require.Zero(t, second.nonceCalls)
	require.Equal(t, 1, third.nonceCalls)
	require.Len(t, third.sent, 1)
	require.Equal(t, uint64(3), third.sent[0].Nonce())
	require.Equal(t, 1, h.totalSent())
}

func TestAllEndpointsFailingIsBoundedToOnePass(t *testing.T) {
	cfg := testConfig()
	clients := []*fakeClient{{callErr: errRPC}, {callErr: errRPC}, {callErr: errRPC}}
	h := newHarness(t, cfg, clients...)

	res := h.keeper.RunCycle(context.Background())
	require.ErrorIs(t, res.Err, ErrAllEndpointsFailed)
	require.ErrorIs(t, res.Err, ErrTransport)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Equal(t, 0, h.pool.Index(), "a full pass returns the cursor to its start")
	for _, c := range clients {
		require.Equal(t, 1, c.calls)
	}
	require.Zero(t, h.totalSent())
}

func TestDryRunSignsWithoutBroadcasting(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	client := &fakeClient{workable: true, nonce: 9}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.True(t, res.Attempted)
	require.NotEqual(t, common.Hash{}, res.TxHash)
	require.Empty(t, client.sent)
}

func TestBalanceFailureDoesNotBlockSubmission(t *testing.T) {
	cfg := testConfig()
	cfg.BalanceAlertThreshold = big.NewInt(1)
	client := &fakeClient{workable: true, balanceErr: errRPC}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, client.sent, 1)
}

type balanceRecorder struct {
	metrics.Metricer
	balances []*big.Int
}

func (b *balanceRecorder) RecordBalance(wei *big.Int) {
	b.balances = append(b.balances, wei)
}

func TestLowBalanceWarnsAndStillSubmits(t *testing.T) {
	cfg := testConfig()
	cfg.BalanceAlertThreshold = big.NewInt(params.Ether)
	client := &fakeClient{workable: true, balance: big.NewInt(params.Ether / 10)}
	h := newHarness(t, cfg, client)

	lgr, logs := testlog.CaptureLogger(t, log.LevelDebug)
	h.keeper.log = lgr
	rec := &balanceRecorder{Metricer: metrics.NoopMetrics}
	h.keeper.metrics = rec

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.True(t, res.Attempted)
	require.Len(t, client.sent, 1)

	require.Len(t, rec.balances, 1)
	require.Equal(t, 0, rec.balances[0].Cmp(client.balance))

	warn := logs.FindLog(
		testlog.NewLevelFilter(log.LevelWarn),
		testlog.NewMessageFilter("Sender balance below alert threshold"))
	require.NotNil(t, warn)
}

func TestBalanceAboveThresholdDoesNotWarn(t *testing.T) {
	cfg := testConfig()
	cfg.BalanceAlertThreshold = big.NewInt(params.Ether / 10)
	client := &fakeClient{workable: true, balance: big.NewInt(params.Ether)}
	h := newHarness(t, cfg, client)

	lgr, logs := testlog.CaptureLogger(t, log.LevelDebug)
	h.keeper.log = lgr

	res := h.keeper.RunCycle(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, client.sent, 1)
	require.Nil(t, logs.FindLog(testlog.NewMessageFilter("Sender balance below alert threshold")))
}

func timeoutConfig() Config {
	cfg := testConfig()
	cfg.RPCTimeout = 50 * time.Millisecond
	return cfg
}

func TestHungEligibilityCallRotatesAfterTimeout(t *testing.T) {
	cfg := timeoutConfig()
	stalled := &fakeClient{hangCall: true}
	healthy := &fakeClient{workable: false}
	h := newHarness(t, cfg, stalled, healthy)

	start := time.Now()
	res := h.keeper.RunCycle(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Endpoint.Index)
	require.Equal(t, 1, h.pool.Index())
	require.Equal(t, 1, stalled.calls)
	require.Equal(t, 1, healthy.calls)
	require.GreaterOrEqual(t, elapsed, cfg.RPCTimeout)
	require.Less(t, elapsed, 2*time.Second)
}

func TestHungDialRotatesAfterTimeout(t *testing.T) {
	cfg := timeoutConfig()
	stalled := &fakeClient{hangDial: true}
	healthy := &fakeClient{workable: true, nonce: 1}
	h := newHarness(t, cfg, stalled, healthy)

	start := time.Now()
	res := h.keeper.RunCycle(context.Background())

	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Endpoint.Index)
	require.Zero(t, stalled.calls)
	require.Len(t, healthy.sent, 1)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestEveryEndpointHungIsBoundedByTimeouts(t *testing.T) {
	cfg := timeoutConfig()
	h := newHarness(t, cfg, &fakeClient{hangDial: true}, &fakeClient{hangCall: true})

	start := time.Now()
	res := h.keeper.RunCycle(context.Background())

	require.ErrorIs(t, res.Err, ErrAllEndpointsFailed)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Equal(t, 0, h.pool.Index())
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestHungNonceFetchTimesOut(t *testing.T) {
	cfg := timeoutConfig()
	client := &fakeClient{workable: true, hangNonce: true}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.ErrorIs(t, res.Err, ErrNonceFetch)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.False(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Empty(t, client.sent)
	require.Equal(t, 0, h.pool.Index())
}

func TestHungSendTimesOut(t *testing.T) {
	cfg := timeoutConfig()
	client := &fakeClient{workable: true, hangSend: true}
	h := newHarness(t, cfg, client)

	res := h.keeper.RunCycle(context.Background())
	require.ErrorIs(t, res.Err, ErrSubmission)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.True(t, res.Attempted)
	require.Equal(t, cfg.PollInterval, res.Delay)
	require.Len(t, client.sent, 1, "submission must not be retried")
}

func TestRunWaitsPollIntervalBetweenCycles(t *testing.T) {
	cfg := testConfig()
	client := &fakeClient{workable: true}
	h := newHarness(t, cfg, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	h.keeper.after = func(d time.Duration) <-chan time.Time {
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
		}
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	require.NoError(t, h.keeper.Run(ctx))
	require.Equal(t, []time.Duration{cfg.PollInterval, cfg.PollInterval, cfg.PollInterval}, delays)
	require.Equal(t, 3, client.calls)
	require.Len(t, client.sent, 3, "one submission per eligible cycle")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	client := &fakeClient{workable: false}
	h := newHarness(t, testConfig(), client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.keeper.Run(ctx))
	require.Zero(t, client.calls)
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing chain id", mutate: func(c *Config) { c.ChainID = nil }},
		{name: "zero gas limit", mutate: func(c *Config) { c.GasLimit = 0 }},
		{name: "negative gas price", mutate: func(c *Config) { c.GasPrice = big.NewInt(-1) }},
		{name: "zero interval", mutate: func(c *Config) { c.PollInterval = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.RPCTimeout = 0 }},
	}
	require.NoError(t, testConfig().Check())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Check())
		})
	}
}
