package endpoint

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// ChainClient is the subset of the execution client API the keeper relies on.
// *ethclient.Client satisfies it.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

var _ ChainClient = (*ethclient.Client)(nil)

var ErrPoolClosed = errors.New("endpoint pool closed")

// DialFunc opens a client for a single endpoint URL.
type DialFunc func(ctx context.Context, rawURL string) (ChainClient, error)

// DialEthClient dials an endpoint with go-ethereum's ethclient.
func DialEthClient(ctx context.Context, rawURL string) (ChainClient, error) {
	return ethclient.DialContext(ctx, rawURL)
}

// Endpoint identifies one node of the pool.
type Endpoint struct {
	Index int
	URL   string
}

// String returns the masked URL so API keys embedded in provider URLs
// do not end up in logs.
func (e Endpoint) String() string {
	return fmt.Sprintf("#%d %s", e.Index, MaskURL(e.URL))
}

// Pool is an ordered, fixed set of interchangeable endpoints with a single
// cursor selecting the current one. Clients are dialed lazily and cached.
type Pool struct {
	mu      sync.Mutex
	urls    []string
	clients []ChainClient
	cursor  int
	dial    DialFunc
	closed  bool
}

func NewPool(urls []string, dial DialFunc) (*Pool, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one rpc url is required")
	}
	for i, u := range urls {
		if strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("rpc url at index %d is empty", i)
		}
	}
	if dial == nil {
		dial = DialEthClient
	}

	copied := make([]string, len(urls))
	copy(copied, urls)

	return &Pool{
		urls:    copied,
		clients: make([]ChainClient, len(urls)),
		dial:    dial,
	}, nil
}

// Len returns the number of endpoints in the pool.
func (p *Pool) Len() int {
	return len(p.urls)
}

// Index returns the cursor position.
func (p *Pool) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Current returns the endpoint the cursor points at.
func (p *Pool) Current() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpointLocked()
}

// Rotate advances the cursor, wrapping to the first endpoint after the last,
// and returns the new current endpoint.
func (p *Pool) Rotate() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = (p.cursor + 1) % len(p.urls)
	return p.endpointLocked()
}

// Client returns the current endpoint together with its client, dialing it on
// first use. A dial failure leaves the cursor untouched. The dial runs without
// the pool lock held, so ctx should carry a deadline.
func (p *Pool) Client(ctx context.Context) (Endpoint, ChainClient, error) {
	p.mu.Lock()
	ep := p.endpointLocked()
	c := p.clients[ep.Index]
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return ep, nil, ErrPoolClosed
	}
	if c != nil {
		return ep, c, nil
	}

	c, err := p.dial(ctx, ep.URL)
	if err != nil {
		return ep, nil, errors.Wrapf(err, "failed to dial %s", MaskURL(ep.URL))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		c.Close()
		return ep, nil, ErrPoolClosed
	}
	// a concurrent caller may have dialed the same endpoint first
	if existing := p.clients[ep.Index]; existing != nil {
		c.Close()
		return ep, existing, nil
	}
	p.clients[ep.Index] = c
	return ep, c, nil
}

// Close closes every client dialed so far.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for i, c := range p.clients {
		if c != nil {
			c.Close()
			p.clients[i] = nil
		}
	}
}

func (p *Pool) endpointLocked() Endpoint {
	return Endpoint{Index: p.cursor, URL: p.urls[p.cursor]}
}

// MaskURL reduces a URL to scheme and host.
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if len(rawURL) > 20 {
			return rawURL[:10] + "..." + rawURL[len(rawURL)-10:]
		}
		return rawURL
	}
	masked := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		masked += "/..."
	}
	return masked
}
