// Command sqlmapper inspects and queries database tables.
package main

import (
	"os"

	"github.com/syssam/sqlmapper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
