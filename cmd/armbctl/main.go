// Command armbctl is the ARMB admin shell: an interactive console for
// operating a supervisor or worker node, realized as a console rather
// than Blender's bpy.types.Panel the way the original add-on did it.
//
// Built on github.com/urfave/cli for the "one binary, subcommands for
// each admin action" shape aistore's own cmd/cli uses, with
// github.com/fatih/color for status coloring.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli"

	"github.com/armb-farm/armb/internal/cfg"
)

func main() {
	app := cli.NewApp()
	app.Name = "armbctl"
	app.Usage = "interactive console for an ARMB render farm node"
	app.Version = "0.1.0"

	app.Commands = []cli.Command{
		{
			Name:  "supervisor",
			Usage: "run as the job coordinator and open an admin shell",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config", Usage: "path to a JSON config file"},
			},
			Action: runSupervisorShell,
		},
		{
			Name:  "worker",
			Usage: "run as an accepting worker daemon",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config", Usage: "path to a JSON config file"},
				cli.IntFlag{Name: "port", Usage: "listen port (overrides config)"},
			},
			Action: runWorkerShell,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (cfg.Config, error) {
	path := c.String("config")
	if path == "" {
		return cfg.Default(), nil
	}
	return cfg.Load(path)
}

func parseFrame(s string) (int, error) {
	return strconv.Atoi(s)
}
