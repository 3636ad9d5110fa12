// Package main provides the entry point for the packpatch CLI.
package main

import (
	"errors"
	"os"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

func main() {
	os.Exit(exitCode(Execute()))
}

// exitStatus carries a run's exit code out of a command without printing
// anything further; the report has already been shown.
type exitStatus struct {
	code int
}

func (e *exitStatus) Error() string {
	return "patch run did not succeed"
}

// exitCode maps the error returned by Execute to a process exit code and
// prints errors that were not already reported.
func exitCode(err error) int {
	if err == nil {
		return types.ExitSuccess
	}
	var status *exitStatus
	if errors.As(err, &status) {
		return status.code
	}
	printError("%v", err)
	return types.ExitError
}
