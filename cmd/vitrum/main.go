package main

import (
	"os"

	"github.com/vincitamore/vitrum/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
