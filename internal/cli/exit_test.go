package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitErrorCodes(t *testing.T) {
	err := NewExitError(ExitFailure, "3 outbox entries failed")
	require.Equal(t, ExitFailure, GetExitCode(err))
	require.Equal(t, "3 outbox entries failed", err.Error())

	wrapped := WrapExitError(ExitCommandError, "loading config", errors.New("no such file"))
	require.Equal(t, ExitCommandError, GetExitCode(wrapped))
	require.Equal(t, "loading config: no such file", wrapped.Error())

	// Wrapping again still resolves through errors.As.
	outer := fmt.Errorf("reconcile: %w", wrapped)
	require.Equal(t, ExitCommandError, GetExitCode(outer))

	// Plain errors default to failure.
	require.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
}
