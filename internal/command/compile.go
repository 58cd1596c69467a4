// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-wordwrap"

	"github.com/nomoslang/nomos/internal/compiler"
	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/values"
)

// CompileCommand is the `nomos compile` CLI command.
type CompileCommand struct{}

// Synopsis implements cli.Command.
func (c *CompileCommand) Synopsis() string {
	return "Compile manifests into a catalog for a node"
}

// Help implements cli.Command.
func (c *CompileCommand) Help() string {
	help := `
Usage: nomos compile [options] <manifest>...

  Compiles the given manifests, in order, into a resource catalog for a
  node and reports any diagnostics. The process exits 0 when compilation
  produced no errors and 1 otherwise.

Options:

  -node=<name>        Node name to compile for. Defaults to this host's name.

  -fact <name>=<value>  Add a node fact. May be repeated. Fact values are
                      strings; structured facts come from a fact provider.

  -log-level=<level>  Only show log records at or above this level. One of
                      debug, info, notice, warning, err, alert, emerg,
                      crit. Defaults to notice.

  -graph              Print the compiled catalog's resources and edges.
`
	return strings.TrimSpace(wordwrap.WrapString(help, 100))
}

type factFlags map[string]values.Value

func (f factFlags) String() string { return "" }

func (f factFlags) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return fmt.Errorf("invalid fact %q: expected <name>=<value>", raw)
	}
	f[name] = values.String(value)
	return nil
}

// Run implements cli.Command.
func (c *CompileCommand) Run(args []string) int {
	flags := flag.NewFlagSet("compile", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprintln(os.Stderr, c.Help()) }

	nodeName := flags.String("node", "", "")
	levelName := flags.String("log-level", "notice", "")
	graph := flags.Bool("graph", false, "")
	factSet := factFlags{}
	flags.Var(factSet, "fact", "")

	if err := flags.Parse(args); err != nil {
		return 1
	}
	manifests := flags.Args()
	if len(manifests) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one manifest is required")
		return 1
	}

	level, err := logging.ParseLevel(*levelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}

	if *nodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot determine the node name: %s\n", err)
			return 1
		}
		*nodeName = hostname
	}

	sink := &logging.Counter{Next: &ConsoleSink{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Level:  level,
		Color:  isatty.IsTerminal(os.Stderr.Fd()),
	}}

	comp := compiler.New(compiler.Options{
		Manifests: manifests,
		Sink:      sink,
	})

	cat, ds := comp.Compile(context.Background(), compiler.NewNode(*nodeName), facts.Static(factSet))
	if ds.HasErrors() || cat == nil {
		fmt.Fprintf(os.Stderr, "compilation failed with %d error(s) and %d warning(s)\n",
			sink.Errors(), sink.Warnings())
		return 1
	}

	if *graph {
		fmt.Fprint(os.Stdout, cat.TreeString())
	}
	return 0
}
