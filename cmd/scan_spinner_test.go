package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanModelShowsElapsedOnlyForSlowScans(t *testing.T) {
	t.Parallel()

	m := newScanModel("Scanning devices...", nil)
	now := m.started.Add(500 * time.Millisecond)
	m.now = func() time.Time { return now }
	assert.NotContains(t, m.View(), "(")

	now = m.started.Add(3 * time.Second)
	assert.Contains(t, m.View(), "Scanning devices... (3s)")

	next, cmd := m.Update(scanFinishedMsg{})
	require.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestRunScanSpinnerReturnsScanError(t *testing.T) {
	t.Parallel()

	boom := errors.New("adb exploded")
	var out bytes.Buffer

	err := runScanSpinner(context.Background(), &out, "Scanning devices...", func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
