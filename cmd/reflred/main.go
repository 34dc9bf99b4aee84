// Command reflred reduces polarized neutron reflectometry runs.
package main

import (
	"os"

	"github.com/roach88/reflred/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
