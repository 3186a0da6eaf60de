package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/notifier"
	"github.com/julianstephens/mimamori/internal/storage"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Hint suggests a next step for errors the user can fix, or "" when there is none.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, storage.ErrNotInitialized):
		return "Run 'mimamori init' to create the database."
	case stderrors.Is(err, keyring.ErrKeyringUnavailable):
		return "No OS keyring was found; use MIMAMORI_DB_CONNECTION or --config instead."
	case stderrors.Is(err, notifier.ErrTrayNotRunning):
		return "Start the tray companion to receive desktop notifications."
	}
	return ""
}

// Fatal logs an error, prints it with any hint and exits with code 1
func Fatal(err error) {
	if err == nil {
		return
	}
	logger.Error("Command execution failed", "error", err)
	fmt.Fprintf(os.Stderr, "%s\n", Format(err))
	if hint := Hint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "       %s\n", hint)
	}
	os.Exit(1)
}
