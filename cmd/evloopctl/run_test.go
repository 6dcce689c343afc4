package main

import (
	"testing"

	"github.com/spf13/afero"
)

func TestRunScriptExecutesDeferDelayRepeat(t *testing.T) {
	fs := afero.NewMemMapFs()
	script := `
steps:
  - kind: defer
    message: hello from defer
  - kind: delay
    message: hello from delay
    interval: 0
  - kind: repeat
    message: hello from repeat
    interval: 0
`
	if err := afero.WriteFile(fs, "script.yaml", []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	state := &cliState{fs: fs, backend: "generic"}
	if err := runScript(state, "script.yaml"); err != nil {
		t.Fatalf("runScript: %v", err)
	}
}

func TestRunScriptUnknownKindFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	script := "steps:\n  - kind: bogus\n    message: nope\n"
	if err := afero.WriteFile(fs, "script.yaml", []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	state := &cliState{fs: fs, backend: "generic"}
	if err := runScript(state, "script.yaml"); err == nil {
		t.Fatalf("runScript with an unknown step kind succeeded, want an error")
	}
}

func TestRunScriptMissingFileFails(t *testing.T) {
	state := &cliState{fs: afero.NewMemMapFs(), backend: "generic"}
	if err := runScript(state, "does-not-exist.yaml"); err == nil {
		t.Fatalf("runScript on a missing script succeeded, want an error")
	}
}

func TestNewRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCommand(afero.NewMemMapFs())
	want := []string{"run", "watch", "signal-demo"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == nil {
			t.Fatalf("subcommand %q not wired: %v", name, err)
		}
	}
}
