// Command depscheck fails when a navigation or decision package imports the
// runtime layers built on top of it.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "arena-bots/server/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// corePackages answer spatial and decision queries and must stay usable
// without a running server.
var corePackages = []string{
	"internal/geom",
	"internal/aas",
	"internal/trace",
	"internal/route",
	"internal/tactical",
	"internal/roaming",
	"internal/worldstate",
	"internal/goals",
}

var runtimePackages = []string{
	"internal/level",
	"internal/sim",
	"internal/scenario",
	"internal/config",
	"internal/app",
	"internal/net",
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		if !within(pkg.ImportPath, corePackages) {
			continue
		}
		for _, imp := range pkg.Imports {
			if within(imp, runtimePackages) {
				violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func within(importPath string, roots []string) bool {
	for _, root := range roots {
		full := modulePath + root
		if importPath == full || strings.HasPrefix(importPath, full+"/") {
			return true
		}
	}
	return false
}
