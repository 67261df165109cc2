package main

import (
	"fmt"
	"os"

	"github.com/WubeDegife/Microgrid-Optimization/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
