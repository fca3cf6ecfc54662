package main

import (
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Addr string `cli:"name=addr desc='server address (default 127.0.0.1:8765)'"`

	Main *cli.Command
}

func (cfg *MainConfig) serverAddr() string {
	if cfg.Addr != "" {
		return cfg.Addr
	}
	return "127.0.0.1:8765"
}

type RunConfig struct {
	*MainConfig

	ConfigPath string `cli:"name=config desc='YAML config file'"`
	Data       string `cli:"name=data desc='SQLite checkpoint path (default session_data.db)'"`

	Run *cli.Command
}

type SessionsConfig struct {
	*MainConfig

	JSON   bool   `cli:"name=json desc='output JSON instead of a table'"`
	Filter string `cli:"name=filter desc='boolean expression to select sessions'"`
	Watch  bool   `cli:"name=watch desc='stay connected and report sweep events'"`

	Sessions *cli.Command
}

type StatusConfig struct {
	*MainConfig

	JSON bool `cli:"name=json desc='output JSON'"`

	Status *cli.Command
}
