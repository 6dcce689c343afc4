package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/kagelabs/evloop"
	"github.com/spf13/cobra"
)

func newWatchCommand(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Bridge filesystem change events into the driver's microtask queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchDirectory(state, args[0])
		},
	}
	return cmd
}

// watchDirectory demonstrates feeding the driver from an external async
// source that is not the readiness back-end: fsnotify delivers on its own
// goroutine, and each event is handed to Driver.Queue rather than routed
// through a Suspension, since there is no parked goroutine waiting on it.
func watchDirectory(state *cliState, dir string) error {
	d, err := newDriver(state)
	if err != nil {
		return fmt.Errorf("evloopctl: constructing driver: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("evloopctl: creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("evloopctl: watching %s: %w", dir, err)
	}

	// A referenced heartbeat keeps hasReferencedWork true so the driver
	// keeps blocking in Dispatch between fsnotify events instead of
	// exiting for want of any registered callback.
	if _, err := d.Repeat(1, func(evloop.CallbackID) {}); err != nil {
		return fmt.Errorf("evloopctl: scheduling heartbeat: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					d.Queue(func() { d.Stop() })
					return
				}
				ev := ev
				d.Queue(func() {
					fmt.Printf("fsnotify: %s %s\n", ev.Op, ev.Name)
				})
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				werr := werr
				d.Queue(func() {
					fmt.Fprintf(os.Stderr, "fsnotify error: %v\n", werr)
				})
			}
		}
	}()

	return d.Run()
}
