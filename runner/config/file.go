package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML overlay. The private key is intentionally not
// part of it; secrets come from flags or the environment only.
type File struct {
	RPCURLs               []string       `yaml:"rpc_urls"`
	AccountAddress        *string        `yaml:"account_address"`
	ContractAddress       *string        `yaml:"contract_address"`
	ChainID               *uint64        `yaml:"chain_id"`
	GasPrice              *string        `yaml:"gas_price"`
	GasLimit              *uint64        `yaml:"gas_limit"`
	PollInterval          *time.Duration `yaml:"poll_interval"`
	RPCTimeout            *time.Duration `yaml:"rpc_timeout"`
	ActionMethod          *string        `yaml:"action_method"`
	DryRun                *bool          `yaml:"dry_run"`
	BalanceAlertThreshold *string        `yaml:"balance_alert_threshold"`
}

func ReadFile(path string) (*File, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	var f File
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to decode config file")
	}
	return &f, nil
}
