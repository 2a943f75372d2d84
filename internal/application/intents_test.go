package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/domain"
)

func TestIntentLedgerSupersededOnlyForOlderFetches(t *testing.T) {
	t.Parallel()

	l := NewIntentLedger(time.Minute)
	before := l.Seq()
	l.CommitStop(t0, "s1")
	after := l.Seq()

	assert.True(t, l.Superseded("s1", before))
	assert.False(t, l.Superseded("s1", after))
	assert.False(t, l.Superseded("s2", before))
}

func TestIntentLedgerStopAllSupersedesEveryOlderFetch(t *testing.T) {
	t.Parallel()

	l := NewIntentLedger(time.Minute)
	before := l.Seq()
	l.BeginStopAll([]domain.SessionID{"s1"})

	assert.True(t, l.StopRequested("unrelated"))
	assert.True(t, l.Explains("unrelated"))

	l.CommitStopAll(t0, []domain.SessionID{"s1"})

	assert.True(t, l.Superseded("never-seen", before))
	assert.False(t, l.StopRequested("unrelated"))
	assert.True(t, l.StopRequested("s1"))
}

func TestIntentLedgerAbortStopRestoresState(t *testing.T) {
	t.Parallel()

	l := NewIntentLedger(time.Minute)
	l.BeginStop("s1")
	require.True(t, l.StopRequested("s1"))

	l.AbortStop("s1")
	assert.False(t, l.StopRequested("s1"))
	assert.False(t, l.Explains("s1"))
}

func TestIntentLedgerMarkCrashedOnce(t *testing.T) {
	t.Parallel()

	l := NewIntentLedger(time.Minute)
	l.MarkStart(mirrorSession("s1", "d1", 0), t0)

	assert.True(t, l.MarkCrashed("s1", t0))
	assert.False(t, l.MarkCrashed("s1", t0))
	assert.True(t, l.Crashed("s1"))
	assert.Empty(t, l.PendingStarts())
}

func TestIntentLedgerExpireKeepsInFlightStops(t *testing.T) {
	t.Parallel()

	l := NewIntentLedger(time.Minute)
	l.MarkStart(mirrorSession("s1", "d1", 0), t0)
	l.CommitStop(t0, "s2")
	l.MarkCrashed("s3", t0)
	l.BeginStop("s4")
	l.FlagVanished("s5", "d5", t0)

	assert.Equal(t, 0, l.Expire(t0.Add(30*time.Second)))
	assert.Equal(t, 3, l.Expire(t0.Add(2*time.Minute)))

	assert.Empty(t, l.PendingStarts())
	assert.False(t, l.Explains("s2"))
	assert.False(t, l.Crashed("s3"))
	assert.True(t, l.StopRequested("s4"))
	assert.True(t, l.Explains("s5"))
}
