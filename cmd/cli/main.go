package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"judgebox/internal/cli"
)

func main() {
	baseURL := flag.String("base", "http://127.0.0.1:3000", "judge server base URL")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Parse()

	client := cli.NewClient(*baseURL, *timeout)
	session := cli.NewSession(client)
	if err := session.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cli failed: %v\n", err)
		os.Exit(1)
	}
}
