package main

import (
	"context"
	"fmt"
	"os"

	"medboard-server-go/internal/bootstrap"
)

func main() {
	if err := bootstrap.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "medboard-server: %v\n", err)
		os.Exit(1)
	}
}
