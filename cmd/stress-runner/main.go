// Package main runs the invariant stress suite. It is shorthand for
// "roomba stress" and accepts the same flags.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/cli"
)

func main() {
	args := append([]string{"stress"}, os.Args[1:]...)
	if err := cli.New().ExecuteWithArgs(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
