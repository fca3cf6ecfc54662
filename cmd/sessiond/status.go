package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scott-cotton/cli"

	"github.com/signadot/sessiond/client"
)

func status(cfg *StatusConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Status.Parse(cc, args)
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg.serverAddr())
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Status()
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(cc.Out, "server:   %s\n", st.ServerID)
	fmt.Fprintf(cc.Out, "uptime:   %s\n", (time.Duration(st.UptimeSeconds)*time.Second).String())
	fmt.Fprintf(cc.Out, "sessions: %d\n", st.SessionCount)
	fmt.Fprintf(cc.Out, "clients:  %d\n", st.ClientCount)
	return nil
}
