package main

import (
	"fmt"

	"github.com/kagelabs/evloop"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// scriptStep is one entry in a run script's YAML document, naming which
// registration kind to make and its parameters. Interval is meaningful
// only when Kind is "delay" or "repeat".
type scriptStep struct {
	Kind     string  `yaml:"kind"`
	Message  string  `yaml:"message"`
	Interval float64 `yaml:"interval"`
}

type script struct {
	Steps []scriptStep `yaml:"steps"`
}

func loadScript(fs afero.Fs, path string) (*script, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("evloopctl: reading script %s: %w", path, err)
	}
	var s script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("evloopctl: parsing script %s: %w", path, err)
	}
	return &s, nil
}

// newDriver constructs a Driver honoring the --backend flag, falling back
// to evloop's own platform-default selection when unset.
func newDriver(state *cliState) (*evloop.Driver, error) {
	if state.backend == "" {
		return evloop.New()
	}
	return evloop.New(evloop.WithNamedBackend(state.backend))
}
