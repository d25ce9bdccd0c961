// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command scorep-info is the CLI surface spec §6 describes: it prints
// the system tree and the resolved configuration variables of the
// measurement core without running any measurement itself. Building
// and starting a Runtime is internal/measurement's job; this tool only
// discovers what it would see.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/measurement"
	"github.com/score-p/scorep-measurement-core/internal/systree"
)

func main() {
	app := &cli.App{
		Name:  "scorep-info",
		Usage: "inspect the Score-P measurement core's system tree and configuration",
		Commands: []*cli.Command{
			systemTreeCommand(),
			configVarsCommand(),
		},
		CommandNotFound: func(c *cli.Context, command string) {
			fmt.Fprintf(os.Stderr, "scorep-info: no such command %q\n", command)
		},
		Action: func(c *cli.Context) error {
			if c.Args().Present() {
				return cli.Exit(fmt.Sprintf("scorep-info: no such command %q", c.Args().First()), 1)
			}
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func systemTreeCommand() *cli.Command {
	return &cli.Command{
		Name:  "system-tree",
		Usage: "print one node-class per line, leaf-first to root",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "JSON system-tree description to load instead of a single default machine node",
			},
		},
		Action: func(c *cli.Context) error {
			dm := defs.NewManager()
			var tree *systree.Tree
			if path := c.String("file"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening %s: %w", path, err)
				}
				defer f.Close()
				tree, err = systree.ImportJSON(dm, f)
				if err != nil {
					return err
				}
			} else {
				hostname, _ := os.Hostname()
				if hostname == "" {
					hostname = "localhost"
				}
				tree = systree.New(dm, hostname)
			}

			for _, leaf := range tree.Leaves() {
				for _, h := range tree.PathFromRoot(leaf) {
					fmt.Fprintln(c.App.Writer, tree.ClassName(h))
				}
			}
			return nil
		},
	}
}

func configVarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "config-vars",
		Usage: "dump every registered configuration variable with its current value",
		Action: func(c *cli.Context) error {
			cfg := measurement.NewConfig()
			cfg.Registry.Resolve()
			fmt.Fprint(c.App.Writer, cfg.Registry.Dump())
			return nil
		},
	}
}
