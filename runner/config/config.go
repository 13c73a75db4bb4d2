package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/base/oracle-keeper/runner/flags"
	"github.com/base/oracle-keeper/runner/keeper"
	"github.com/base/oracle-keeper/runner/oracle"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

// Config is the interface for the config of the keeper runner.
type Config interface {
	Check() error
	LogConfig() oplog.CLIConfig
	MetricsConfig() MetricsConfig
	ConfigPath() string
	RPCURLs() []string
	PrivateKey() *ecdsa.PrivateKey
	AccountAddress() common.Address
	ContractAddress() common.Address
	ActionMethod() string
	KeeperConfig() keeper.Config
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

type config struct {
	logConfig       oplog.CLIConfig
	metricsConfig   MetricsConfig
	configPath      string
	rpcURLs         []string
	privateKey      *ecdsa.PrivateKey
	accountAddress  common.Address
	contractAddress common.Address
	actionMethod    string
	keeperConfig    keeper.Config
}

// raw holds settings before parsing, after the YAML overlay is applied.
type raw struct {
	rpcURLs               []string
	privateKey            string
	accountAddress        string
	contractAddress       string
	chainID               uint64
	gasPrice              string
	gasLimit              uint64
	pollInterval          time.Duration
	rpcTimeout            time.Duration
	actionMethod          string
	dryRun                bool
	balanceAlertThreshold string
}

// NewConfig reads the config from CLI flags or environment variables, filling
// in unset flags from the YAML file given by --config.
func NewConfig(ctx *cli.Context) (Config, error) {
	r := raw{
		rpcURLs:               ctx.StringSlice(flags.RPCURLsFlagName),
		privateKey:            ctx.String(flags.PrivateKeyFlagName),
		accountAddress:        ctx.String(flags.AccountAddressFlagName),
		contractAddress:       ctx.String(flags.ContractAddressFlagName),
		chainID:               ctx.Uint64(flags.ChainIDFlagName),
		gasPrice:              ctx.String(flags.GasPriceFlagName),
		gasLimit:              ctx.Uint64(flags.GasLimitFlagName),
		pollInterval:          ctx.Duration(flags.PollIntervalFlagName),
		rpcTimeout:            ctx.Duration(flags.RPCTimeoutFlagName),
		actionMethod:          ctx.String(flags.ActionMethodFlagName),
		dryRun:                ctx.Bool(flags.DryRunFlagName),
		balanceAlertThreshold: ctx.String(flags.BalanceAlertThresholdFlagName),
	}

	configPath := ctx.String(flags.ConfigFlagName)
	if configPath != "" {
		f, err := ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		r.overlay(f, ctx.IsSet)
	}

	c, err := r.parse()
	if err != nil {
		return nil, err
	}
	c.configPath = configPath
	c.logConfig = oplog.ReadCLIConfig(ctx)
	c.metricsConfig = MetricsConfig{
		Enabled: ctx.Bool(flags.MetricsEnabledFlagName),
		Addr:    ctx.String(flags.MetricsAddrFlagName),
		Port:    ctx.Int(flags.MetricsPortFlagName),
	}
	return c, nil
}

// overlay copies file values over r for every flag that was not set
// explicitly.
func (r *raw) overlay(f *File, isSet func(string) bool) {
	if len(f.RPCURLs) > 0 && !isSet(flags.RPCURLsFlagName) {
		r.rpcURLs = f.RPCURLs
	}
	if f.AccountAddress != nil && !isSet(flags.AccountAddressFlagName) {
		r.accountAddress = *f.AccountAddress
	}
	if f.ContractAddress != nil && !isSet(flags.ContractAddressFlagName) {
		r.contractAddress = *f.ContractAddress
	}
	if f.ChainID != nil && !isSet(flags.ChainIDFlagName) {
		r.chainID = *f.ChainID
	}
	if f.GasPrice != nil && !isSet(flags.GasPriceFlagName) {
		r.gasPrice = *f.GasPrice
	}
	if f.GasLimit != nil && !isSet(flags.GasLimitFlagName) {
		r.gasLimit = *f.GasLimit
	}
	if f.PollInterval != nil && !isSet(flags.PollIntervalFlagName) {
		r.pollInterval = *f.PollInterval
	}
	if f.RPCTimeout != nil && !isSet(flags.RPCTimeoutFlagName) {
		r.rpcTimeout = *f.RPCTimeout
	}
	if f.ActionMethod != nil && !isSet(flags.ActionMethodFlagName) {
		r.actionMethod = *f.ActionMethod
	}
	if f.DryRun != nil && !isSet(flags.DryRunFlagName) {
		r.dryRun = *f.DryRun
	}
	if f.BalanceAlertThreshold != nil && !isSet(flags.BalanceAlertThresholdFlagName) {
		r.balanceAlertThreshold = *f.BalanceAlertThreshold
	}
}

func (r raw) parse() (*config, error) {
	c := &config{
		actionMethod: r.actionMethod,
	}

	for _, u := range r.rpcURLs {
		// env vars arrive as one comma separated value
		for _, part := range strings.Split(u, ",") {
			if part = strings.TrimSpace(part); part != "" {
				c.rpcURLs = append(c.rpcURLs, part)
			}
		}
	}

	if r.privateKey != "" {
		key, err := keeper.ParsePrivateKey(r.privateKey)
		if err != nil {
			return nil, err
		}
		c.privateKey = key
	}

	if r.accountAddress != "" {
		if !common.IsHexAddress(r.accountAddress) {
			return nil, fmt.Errorf("invalid account address %q", r.accountAddress)
		}
		c.accountAddress = common.HexToAddress(r.accountAddress)
	}

	if !common.IsHexAddress(r.contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", r.contractAddress)
	}
	c.contractAddress = common.HexToAddress(r.contractAddress)

	gasPrice, err := parseWei(r.gasPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid gas price: %w", err)
	}
	threshold, err := parseWei(r.balanceAlertThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid balance alert threshold: %w", err)
	}

	c.keeperConfig = keeper.Config{
		ChainID:               new(big.Int).SetUint64(r.chainID),
		GasLimit:              r.gasLimit,
		GasPrice:              gasPrice,
		PollInterval:          r.pollInterval,
		RPCTimeout:            r.rpcTimeout,
		DryRun:                r.dryRun,
		BalanceAlertThreshold: threshold,
	}
	return c, nil
}

// parseWei parses a non-negative decimal amount that fits in 256 bits.
func parseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

func (c *config) Check() error {
	if len(c.rpcURLs) == 0 {
		return errors.New("at least one rpc url is required")
	}
	if c.privateKey == nil {
		return errors.New("private key is required")
	}
	if _, err := keeper.NewCredentials(c.privateKey, c.accountAddress); err != nil {
		return err
	}
	if c.contractAddress == (common.Address{}) {
		return errors.New("contract address is required")
	}
	if _, err := oracle.New(c.contractAddress, c.actionMethod); err != nil {
		return err
	}
	if c.metricsConfig.Enabled && (c.metricsConfig.Port < 0 || c.metricsConfig.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.metricsConfig.Port)
	}
	return c.keeperConfig.Check()
}

func (c *config) LogConfig() oplog.CLIConfig {
	return c.logConfig
}

func (c *config) MetricsConfig() MetricsConfig {
	return c.metricsConfig
}

func (c *config) ConfigPath() string {
	return c.configPath
}

func (c *config) RPCURLs() []string {
	return c.rpcURLs
}

func (c *config) PrivateKey() *ecdsa.PrivateKey {
	return c.privateKey
}

func (c *config) AccountAddress() common.Address {
	return c.accountAddress
}

func (c *config) ContractAddress() common.Address {
	return c.contractAddress
}

func (c *config) ActionMethod() string {
	return c.actionMethod
}

func (c *config) KeeperConfig() keeper.Config {
	return c.keeperConfig
}
