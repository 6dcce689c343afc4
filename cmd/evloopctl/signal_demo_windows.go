//go:build windows

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignalDemoCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "signal-demo",
		Short: "Register a signal callback and print delivery order (unsupported on windows)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("evloopctl: signal-demo requires syscall.Kill, unavailable on windows")
		},
	}
}
