// unitrun discovers and runs the utest.* unit tests of a repository.
package main

import (
	"os"

	"github.com/ryym/unitrun/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args, os.Stdout, os.Stderr))
}
