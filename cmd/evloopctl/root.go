package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// cliState groups the process-external dependencies each subcommand needs,
// so tests can substitute an in-memory afero.Fs instead of touching disk.
type cliState struct {
	fs      afero.Fs
	backend string
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	state := &cliState{fs: fs}

	root := &cobra.Command{
		Use:           "evloopctl",
		Short:         "Drive an evloop.Driver from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&state.backend, "backend", "", "backend override (generic, epoll, kqueue); empty selects the platform default")

	root.AddCommand(newRunCommand(state))
	root.AddCommand(newWatchCommand(state))
	root.AddCommand(newSignalDemoCommand(state))
	return root
}
