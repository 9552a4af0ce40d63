// Package base provides the small shared Command/FlagSet scaffolding that
// every internal/cmd/commands/* subcommand embeds, mirroring the
// hermes internal/cmd/base package (not itself present in the reference
// pack, but visible in how internal/cmd/commands/serve uses it).
package base

import (
	"bytes"
	"flag"

	"github.com/mitchellh/cli"
)

// Command is the embeddable base every subcommand builds on: just the UI
// handed down from internal/cmd.Main.
type Command struct {
	UI cli.Ui
}

// FlagSet wraps flag.FlagSet with a Help() renderer so subcommands can
// append their own flag usage to a Synopsis/Help string.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet returns a FlagSet that never prints its own usage on parse
// errors — the owning Command is responsible for reporting the error
// through its UI instead.
func NewFlagSet(name string) *FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {}
	return &FlagSet{FlagSet: fs}
}

// Help renders the flag defaults the way a -h invocation would.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	old := f.Output()
	f.SetOutput(&buf)
	f.PrintDefaults()
	f.SetOutput(old)
	return buf.String()
}
