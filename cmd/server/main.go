// Package main is the entry point for the codecraft server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// All actual logic lives in imported packages; main only hands control to
// the command line in internal/cli, which reads configuration, builds the
// dependencies and starts the server.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// Each executable gets its own directory with its own main.go.
package main

import "github.com/sakif/codecraft/internal/cli"

func main() {
	cli.Execute()
}
