package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agentcore/agentcore/cmd/root"
)

func main() {
	if err := root.Execute(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
