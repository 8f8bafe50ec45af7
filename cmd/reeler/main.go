package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"reeler/internal/services"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// A user interrupt already settled the job record as cancelled; report
	// it through the conventional interrupt exit code without error noise.
	if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrCancelled) {
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, "reeler:", err)
	os.Exit(1)
}
