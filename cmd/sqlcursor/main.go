package main

import (
	"os"

	"github.com/woxQAQ/sqlcursor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
