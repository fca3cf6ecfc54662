package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/signadot/sessiond/api"
	"github.com/signadot/sessiond/client"
)

func sessions(cfg *SessionsConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Sessions.Parse(cc, args)
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg.serverAddr())
	if err != nil {
		return err
	}
	defer c.Close()

	infos, err := c.Sessions(cfg.Filter)
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return err
		}
	} else {
		printSessionTable(cc, infos)
	}

	if !cfg.Watch {
		return nil
	}
	for ev := range c.Events() {
		fmt.Fprintf(cc.Out, "sweep at %s: %d evicted\n",
			ev.Timestamp.Format(time.RFC3339), ev.Evicted)
	}
	return nil
}

func printSessionTable(cc *cli.Context, infos []api.SessionInfo) {
	statusColor := func(s string) string { return s }
	if f, ok := cc.Out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		active := color.New(color.FgGreen).SprintFunc()
		other := color.New(color.FgYellow).SprintFunc()
		statusColor = func(s string) string {
			if s == api.StatusActive {
				return active(s)
			}
			return other(s)
		}
	}

	w := tabwriter.NewWriter(cc.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tUSER\tSTATUS\tTASK\tPROGRESS\tLAST ACTIVITY")
	for i := range infos {
		s := &infos[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
			s.SessionID, s.UserID, statusColor(s.Status), s.CurrentTask,
			s.Progress*100, s.LastActivity.Format(time.RFC3339))
	}
	w.Flush()
}
