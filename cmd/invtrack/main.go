// Command invtrack manages warehouse inventory tables from the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/invtrack/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		// Errors already reported by a command's formatter carry an ExitError;
		// anything else (flag parsing, missing args) is printed here.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
