package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"

	apperrors "github.com/panelops/panelctl/internal/errors"
)

const (
	exitFailure            = foundry.ExitFailure
	exitConfigInvalid      = foundry.ExitConfigInvalid
	exitFileNotFound       = foundry.ExitFileNotFound
	exitServiceUnavailable = foundry.ExitExternalServiceUnavailable
)

// ExitCodeFor picks a semantic foundry exit code for a command error.
func ExitCodeFor(err error) foundry.ExitCode {
	if stderrors.Is(err, fs.ErrNotExist) {
		return exitFileNotFound
	}
	var envelope *errors.ErrorEnvelope
	if !stderrors.As(err, &envelope) {
		envelope = apperrors.FromError(context.Background(), err)
	}
	switch envelope.Code {
	case apperrors.CodeConfigInvalid:
		return exitConfigInvalid
	case apperrors.CodeExternalService, apperrors.CodeTimeout, apperrors.CodeServiceUnavailable:
		return exitServiceUnavailable
	default:
		return exitFailure
	}
}

// ExitWithCodeStderr writes err to stderr with exit code metadata and exits.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}

	os.Exit(info.Code)
}
