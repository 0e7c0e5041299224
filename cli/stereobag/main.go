// Package main is the stereobag command.
package main

import (
	"os"

	"go.viam.com/stereobag/cli"
	"go.viam.com/stereobag/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("stereobag").Fatal(err)
	}
}
