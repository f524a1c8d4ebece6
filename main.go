package main

import (
	"fmt"
	"os"

	"workflow-engine/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "workflow-engine: %v\n", err)
		os.Exit(1)
	}
}
