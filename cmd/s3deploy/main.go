// Command s3deploy incrementally deploys a local directory to an S3 bucket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

var red = color.New(color.FgHiRed, color.Bold).SprintFunc()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("deploy failed", "error", err)
		fmt.Fprintln(os.Stderr, red("error:"), err)
		stop()
		os.Exit(1)
	}
}
