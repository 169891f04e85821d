package main

import (
	"context"
	"os"

	"galarender/internal/cli"
)

func main() {
	os.Exit(cli.New(os.Stdout, os.Stderr).Execute(context.Background(), os.Args[1:]))
}
