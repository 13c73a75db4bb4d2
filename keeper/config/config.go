package config

import (
	runnerconfig "github.com/base/oracle-keeper/runner/config"
	"github.com/urfave/cli/v2"
)

// KeeperCmdConfig is the config needed by the keeper command.
type KeeperCmdConfig struct {
	runnerconfig.Config
}

// NewKeeperCmdConfig parses the KeeperCmdConfig from the provided flags or environment variables.
func NewKeeperCmdConfig(ctx *cli.Context) (*KeeperCmdConfig, error) {
	cfg, err := runnerconfig.NewConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &KeeperCmdConfig{
		Config: cfg,
	}, nil
}
