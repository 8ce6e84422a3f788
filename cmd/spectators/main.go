// Package main is a websocket load generator, shorthand for
// "roomba spectate".
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/cli"
)

func main() {
	args := append([]string{"spectate"}, os.Args[1:]...)
	if err := cli.New().ExecuteWithArgs(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
