package main

import (
	"context"
	"fmt"
	"os"

	"github.com/heimdex/timeline-agent/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
