// Package cmd wires the CLI entrypoint: a mitchellh/cli.CLI with exactly
// one real subcommand ("serve"), defaulting to it when invoked bare,
// mirroring hermes's internal/cmd/main.go dispatch.
package cmd

import (
	"bufio"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/vincitamore/vitrum/internal/cmd/base"
	"github.com/vincitamore/vitrum/internal/cmd/commands/serve"
	"github.com/vincitamore/vitrum/internal/version"
)

// Main runs the CLI with the given arguments (os.Args) and returns the
// process exit code.
func Main(args []string) int {
	cliName := args[0]

	log := hclog.New(&hclog.LoggerOptions{Name: cliName})
	log.SetLevel(hclog.Warn)

	// No subcommand given: default to serve, the way hermes's simplified
	// mode treats a bare invocation as "serve the current directory".
	if len(args) == 1 {
		args = append(args, "serve")
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := &cli.CLI{
		Name:    cliName,
		Args:    args[1:],
		Version: version.Version,
		Commands: map[string]cli.CommandFactory{
			"serve": func() (cli.Command, error) {
				return &serve.Command{Command: &base.Command{UI: ui}}, nil
			},
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		log.Error("cli run failed", "error", err)
		return 1
	}

	return exitCode
}
