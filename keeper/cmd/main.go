package main

import (
	"context"
	"fmt"
	"os"

	"github.com/base/oracle-keeper/keeper/config"
	"github.com/base/oracle-keeper/keeper/flags"
	"github.com/base/oracle-keeper/service"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	"github.com/ethereum/go-ethereum/log"
)

// autopopulated by the Makefile
var (
	Version   = ""
	GitCommit = ""
	GitDate   = ""
)

func main() {
	oplog.SetupDefaults()

	// .env is optional
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Version = opservice.FormatVersion(Version, GitCommit, GitDate, "")
	app.Name = "oracle-keeper"
	app.Usage = "Oracle keeper"
	app.Description = "Polls the oracle for workable state and submits work transactions, failing over between RPC endpoints."
	app.Action = cliapp.LifecycleCmd(Main(Version))

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func Main(version string) cliapp.LifecycleAction {
	return func(cliCtx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		cfg, err := config.NewKeeperCmdConfig(cliCtx)
		if err != nil {
			return nil, fmt.Errorf("invalid CLI flags: %w", err)
		}
		if err := cfg.Check(); err != nil {
			return nil, fmt.Errorf("invalid CLI flags: %w", err)
		}

		l := oplog.NewLogger(oplog.AppOut(cliCtx), cfg.LogConfig())
		oplog.SetGlobalLogHandler(l.Handler())
		opservice.ValidateEnvVars(flags.EnvVarPrefix, flags.Flags, l)

		return service.NewService(version, cfg, l)
	}
}
