// Command sercha-synth discovers themes in an embedded chunk collection and
// synthesizes them into a chaptered document.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
