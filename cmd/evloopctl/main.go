// Command evloopctl is a small demonstration CLI for the evloop package. It
// is not part of the library's public API: it exists to give the package's
// domain-stack dependencies (cobra, afero, fsnotify, yaml.v3) a runnable
// home, the way a teacher repo's cmd/ directory exercises its own library
// end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func main() {
	if err := newRootCommand(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
