package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}

	return cli.NewCommandAt(&cfg.Main, "sessiond").
		WithSynopsis("sessiond [opts] command [opts]").
		WithDescription("sessiond is a real-time work-session coordination service.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return sessiondMain(cfg, cc, args)
		}).
		WithSubs(
			RunCommand(cfg),
			SessionsCommand(cfg),
			StatusCommand(cfg))
}

func sessiondMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func RunCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RunConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Run, "run").
		WithSynopsis("run [-config file] [-data path] [-addr addr]").
		WithDescription("run the sessiond server").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return run(cfg, cc, args)
		})
}

func SessionsCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &SessionsConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Sessions, "sessions").
		WithAliases("s", "ls").
		WithSynopsis("sessions [-filter expr] [-json] [-watch]").
		WithDescription("list live sessions on a running server").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return sessions(cfg, cc, args)
		})
}

func StatusCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &StatusConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Status, "status").
		WithAliases("st").
		WithSynopsis("status [-json]").
		WithDescription("show server identity and live counters").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return status(cfg, cc, args)
		})
}
