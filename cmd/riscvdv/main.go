package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"riscvdv/internal/cli"
	"riscvdv/pkg/riscvdv"
)

func main() {
	atexit.Register(func() {
		_ = os.Stdout.Sync()
	})

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if riscvdv.IsFatal(err) {
			slog.Error("generation aborted", "err", err)
		}
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
