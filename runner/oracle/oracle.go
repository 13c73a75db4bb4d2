package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	WorkableMethod    = "workable"
	WorkMethod        = "work"
	WorkForFreeMethod = "workForFree"
)

// DefaultAddress is the Keep3rV1Oracle deployment on BNB Smart Chain.
var DefaultAddress = common.HexToAddress("0x203153522B9EAef4aE17c6e99851EE7b2F7D312E")

// keeperABI is the slice of the oracle ABI the keeper needs.
const keeperABI = `[
	{"inputs":[],"name":"workable","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"work","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"workForFree","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle packs and unpacks calls to the keeper-facing methods of the oracle.
type Oracle struct {
	abi     abi.ABI
	address common.Address
	action  string
}

// New returns a binding for the oracle at address that performs work through
// the given zero-argument action method.
func New(address common.Address, action string) (*Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(keeperABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse oracle abi")
	}

	method, ok := parsed.Methods[action]
	if !ok {
		return nil, fmt.Errorf("unknown action method %q", action)
	}
	if method.IsConstant() || len(method.Inputs) != 0 {
		return nil, fmt.Errorf("action method %q must be a state-changing call without arguments", action)
	}

	return &Oracle{
		abi:     parsed,
		address: address,
		action:  action,
	}, nil
}

func (o *Oracle) Address() common.Address {
	return o.address
}

func (o *Oracle) Action() string {
	return o.action
}

// Workable reports whether work is currently eligible. Any failure,
// including a result that does not decode as a bool, is returned as an error.
func (o *Oracle) Workable(ctx context.Context, caller Caller, from common.Address) (bool, error) {
	data, err := o.abi.Pack(WorkableMethod)
	if err != nil {
		return false, errors.Wrap(err, "failed to pack workable call")
	}

	res, err := caller.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &o.address,
		Data: data,
	}, nil)
	if err != nil {
		return false, errors.Wrap(err, "workable call failed")
	}

	out, err := o.abi.Unpack(WorkableMethod, res)
	if err != nil {
		return false, errors.Wrap(err, "failed to decode workable result")
	}
	if len(out) != 1 {
		return false, fmt.Errorf("workable returned %d values, expected 1", len(out))
	}
	workable, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("workable returned %T, expected bool", out[0])
	}
	return workable, nil
}

// ActionData returns the call data of the action method.
func (o *Oracle) ActionData() ([]byte, error) {
	data, err := o.abi.Pack(o.action)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s call", o.action)
	}
	return data, nil
}
