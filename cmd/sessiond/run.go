package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"

	"github.com/signadot/sessiond/server"
	"github.com/signadot/sessiond/storage"
)

func run(cfg *RunConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Run.Parse(cc, args)
	if err != nil {
		return err
	}

	srvCfg := server.DefaultConfig()
	if cfg.ConfigPath != "" {
		srvCfg, err = server.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return err
		}
	}
	if cfg.Addr != "" {
		srvCfg.Addr = cfg.Addr
	}
	if cfg.Data != "" {
		srvCfg.DataPath = cfg.Data
	}

	if err := agent.Listen(agent.Options{}); err != nil {
		fmt.Fprintf(cc.Out, "gops agent failed: %v\n", err)
	}

	// a durability fault never blocks serving; run in-memory only
	var store *storage.Store
	if srvCfg.DataPath != "" {
		store, err = storage.Open(srvCfg.DataPath)
		if err != nil {
			fmt.Fprintf(cc.Out, "checkpoint store unavailable, running without durability: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	srv := server.New(&server.Spec{
		Config: srvCfg,
		Store:  store,
	})
	if err := srv.Start(); err != nil {
		return err
	}
	srv.Spec.Log.Info("sessiond started", "addr", srv.TCPAddr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	srv.Spec.Log.Info("shutting down")
	return srv.Stop()
}
