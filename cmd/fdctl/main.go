package main

import (
	"fmt"
	"os"

	fdctlcmd "github.com/telekom/frontdesk/pkg/fdctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := fdctlcmd.NewRootCommand(fdctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
