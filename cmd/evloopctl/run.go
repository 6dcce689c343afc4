package main

import (
	"fmt"

	"github.com/kagelabs/evloop"
	"github.com/spf13/cobra"
)

func newRunCommand(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Execute a YAML-declared script of defer/delay/repeat callbacks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(state, args[0])
		},
	}
	return cmd
}

func runScript(state *cliState, path string) error {
	s, err := loadScript(state.fs, path)
	if err != nil {
		return err
	}
	d, err := newDriver(state)
	if err != nil {
		return fmt.Errorf("evloopctl: constructing driver: %w", err)
	}

	var repeatCounts = make(map[int]int)
	for i, step := range s.Steps {
		i, step := i, step
		switch step.Kind {
		case "defer":
			d.Defer(func(evloop.CallbackID) {
				fmt.Println(step.Message)
			})
		case "delay":
			if _, err := d.Delay(step.Interval, func(evloop.CallbackID) {
				fmt.Println(step.Message)
			}); err != nil {
				return fmt.Errorf("evloopctl: script step %d: %w", i, err)
			}
		case "repeat":
			var id evloop.CallbackID
			id, err = d.Repeat(step.Interval, func(evloop.CallbackID) {
				repeatCounts[i]++
				fmt.Printf("%s (tick %d)\n", step.Message, repeatCounts[i])
				if repeatCounts[i] >= 3 {
					_ = d.Cancel(id)
				}
			})
			if err != nil {
				return fmt.Errorf("evloopctl: script step %d: %w", i, err)
			}
		default:
			return fmt.Errorf("evloopctl: script step %d: unknown kind %q", i, step.Kind)
		}
	}

	return d.Run()
}
