// Command cakeday runs the birthday reminder service.
package main

import (
	"os"

	"github.com/mesh-intelligence/cakeday/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
