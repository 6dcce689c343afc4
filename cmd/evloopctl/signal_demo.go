//go:build !windows

package main

import (
	"fmt"
	"syscall"

	"github.com/kagelabs/evloop"
	"github.com/spf13/cobra"
)

func newSignalDemoCommand(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal-demo",
		Short: "Register a SIGHUP callback and print delivery order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignalDemo(state)
		},
	}
	return cmd
}

// runSignalDemo registers a SIGHUP callback, self-delivers it via
// syscall.Kill, and stops the driver half a second later, demonstrating
// the Signal callback kind end to end without requiring an external
// operator to send the signal by hand.
func runSignalDemo(state *cliState) error {
	d, err := newDriver(state)
	if err != nil {
		return fmt.Errorf("evloopctl: constructing driver: %w", err)
	}

	received := 0
	id, err := d.OnSignal(int(syscall.SIGHUP), func(_ evloop.CallbackID, signo int) {
		received++
		fmt.Printf("signal-demo: received signal %d (count %d)\n", signo, received)
	})
	if err != nil {
		return fmt.Errorf("evloopctl: registering signal callback: %w", err)
	}

	d.Defer(func(evloop.CallbackID) {
		go func() {
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGHUP)
		}()
	})

	if _, err := d.Delay(0.5, func(evloop.CallbackID) {
		_ = d.Cancel(id)
		d.Stop()
	}); err != nil {
		return fmt.Errorf("evloopctl: scheduling shutdown: %w", err)
	}

	return d.Run()
}
