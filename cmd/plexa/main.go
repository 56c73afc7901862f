// Command plexa is the command-line entrypoint for the plan execution
// core: it builds the cobra root command from internal/cli and runs it.
package main

import (
	"fmt"
	"os"

	"github.com/ratioSolver/PlExA/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
