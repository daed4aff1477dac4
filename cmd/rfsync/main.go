// Command rfsync processes request factory payloads against a SQLite-backed
// address book.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rfsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rfsync: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
