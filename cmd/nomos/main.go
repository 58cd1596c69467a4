// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/nomoslang/nomos/internal/command"
	"github.com/nomoslang/nomos/version"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	app := cli.NewCLI("nomos", version.Version)
	app.Args = args
	app.Commands = map[string]cli.CommandFactory{
		"compile": func() (cli.Command, error) {
			return &command.CompileCommand{}, nil
		},
	}

	status, err := app.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return status
}
