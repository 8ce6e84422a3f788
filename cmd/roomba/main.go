// Package main is the entry point for the cleaning-agent simulator.
// It only wires the CLI. NO simulation logic belongs here.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/cli"
)

func main() {
	if err := cli.New().Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
