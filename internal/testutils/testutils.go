// Package testutils holds small helpers shared across internal package
// tests.
package testutils

import (
	"io"
	"log/slog"
)

// DisableLogging silences the global structured logger for the duration of
// a test run.
func DisableLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
