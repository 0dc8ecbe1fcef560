// Command profilesync synchronizes remote profiles into a local cache.
package main

import (
	"context"
	"os"

	"github.com/roach88/profilesync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
