// Command visitctl drives the field visit API from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/sharath018/field-visit-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
