package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
)

const (
	ConfigFlagName                = "config"
	RPCURLsFlagName               = "rpc-urls"
	PrivateKeyFlagName            = "private-key"
	AccountAddressFlagName        = "account-address"
	ContractAddressFlagName       = "contract-address"
	ChainIDFlagName               = "chain-id"
	GasPriceFlagName              = "gas-price"
	GasLimitFlagName              = "gas-limit"
	PollIntervalFlagName          = "poll-interval"
	RPCTimeoutFlagName            = "rpc-timeout"
	ActionMethodFlagName          = "action-method"
	DryRunFlagName                = "dry-run"
	BalanceAlertThresholdFlagName = "balance-alert-threshold"
	MetricsEnabledFlagName        = "metrics.enabled"
	MetricsAddrFlagName           = "metrics.addr"
	MetricsPortFlagName           = "metrics.port"
)

// Unprefixed environment variables from earlier keeper deployments. They are
// still honoured so existing .env files keep working.
const (
	LegacyAccountAddressEnvVar = "ACCOUNT_ADDRESS"
	LegacyPrivateKeyEnvVar     = "ACCOUNT_PRIVATE_KEY"
)

// DefaultRPCURLs are the public BNB Smart Chain dataseed endpoints.
var DefaultRPCURLs = []string{
	"https://bsc-dataseed.binance.org/",
	"https://bsc-dataseed1.defibit.io/",
	"https://bsc-dataseed1.ninicoin.io/",
	"https://bsc-dataseed2.defibit.io/",
	"https://bsc-dataseed3.defibit.io/",
	"https://bsc-dataseed4.defibit.io/",
	"https://bsc-dataseed2.ninicoin.io/",
	"https://bsc-dataseed3.ninicoin.io/",
	"https://bsc-dataseed4.ninicoin.io/",
	"https://bsc-dataseed1.binance.org/",
	"https://bsc-dataseed2.binance.org/",
	"https://bsc-dataseed3.binance.org/",
	"https://bsc-dataseed4.binance.org/",
}

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    ConfigFlagName,
			Usage:   "Optional YAML file with keeper settings. Flags set explicitly take precedence",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "CONFIG"),
		},
		&cli.StringSliceFlag{
			Name:    RPCURLsFlagName,
			Usage:   "Ordered list of equivalent JSON-RPC endpoints, used with round-robin failover",
			Value:   cli.NewStringSlice(DefaultRPCURLs...),
			EnvVars: opservice.PrefixEnvVar(envPrefix, "RPC_URLS"),
		},
		&cli.StringFlag{
			Name:    PrivateKeyFlagName,
			Usage:   "Hex private key of the sender account",
			EnvVars: append(opservice.PrefixEnvVar(envPrefix, "PRIVATE_KEY"), LegacyPrivateKeyEnvVar),
		},
		&cli.StringFlag{
			Name:    AccountAddressFlagName,
			Usage:   "Sender account address. Must match the private key when set",
			EnvVars: append(opservice.PrefixEnvVar(envPrefix, "ACCOUNT_ADDRESS"), LegacyAccountAddressEnvVar),
		},
		&cli.StringFlag{
			Name:    ContractAddressFlagName,
			Usage:   "Address of the oracle contract",
			Value:   "0x203153522B9EAef4aE17c6e99851EE7b2F7D312E",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "CONTRACT_ADDRESS"),
		},
		&cli.Uint64Flag{
			Name:    ChainIDFlagName,
			Usage:   "Chain ID used for EIP-155 signing",
			Value:   56,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "CHAIN_ID"),
		},
		&cli.StringFlag{
			Name:    GasPriceFlagName,
			Usage:   "Fixed gas price in wei (decimal)",
			Value:   "10000000000",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "GAS_PRICE"),
		},
		&cli.Uint64Flag{
			Name:    GasLimitFlagName,
			Usage:   "Gas limit of the action transaction",
			Value:   1_000_000,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "GAS_LIMIT"),
		},
		&cli.DurationFlag{
			Name:    PollIntervalFlagName,
			Usage:   "Delay between eligibility checks",
			Value:   300 * time.Second,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "POLL_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    RPCTimeoutFlagName,
			Usage:   "Timeout applied to every individual RPC call",
			Value:   30 * time.Second,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "RPC_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    ActionMethodFlagName,
			Usage:   "Contract method invoked when work is eligible: work or workForFree",
			Value:   "work",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "ACTION_METHOD"),
		},
		&cli.BoolFlag{
			Name:    DryRunFlagName,
			Usage:   "Sign the action transaction but do not broadcast it",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "DRY_RUN"),
		},
		&cli.StringFlag{
			Name:    BalanceAlertThresholdFlagName,
			Usage:   "Warn when the sender balance in wei drops below this value. 0 disables",
			Value:   "0",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "BALANCE_ALERT_THRESHOLD"),
		},
		&cli.BoolFlag{
			Name:    MetricsEnabledFlagName,
			Usage:   "Serve Prometheus metrics",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_ENABLED"),
		},
		&cli.StringFlag{
			Name:    MetricsAddrFlagName,
			Usage:   "Metrics listening address",
			Value:   "0.0.0.0",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_ADDR"),
		},
		&cli.IntFlag{
			Name:    MetricsPortFlagName,
			Usage:   "Metrics listening port",
			Value:   7300,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_PORT"),
		},
	}
}
