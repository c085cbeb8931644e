package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/corechain/node/config"
)

var dumpConfigCommand = cli.Command{
	Action:    dumpConfig,
	Name:      "dumpconfig",
	Usage:     "Show the spec.md §6.2 default configuration in TOML form",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		configFileFlag,
	},
}

// dumpConfig writes config.Default() (or --config, if it already exists)
// to --config, the round-trip contract grounded on
// cmd/utils/nodecmd/dumpconfigcmd.go: an operator edits the emitted file
// and starts the node with --config pointing at it.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadOrDefaultConfig(ctx)
	if err != nil {
		return err
	}
	path := ctx.String(configFileFlag.Name)
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("configuration written to %s\n", path)
	return nil
}
