package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan-app/dayplan/engine/db"
)

const seedFixture = `
events:
  - id: seed-breakfast
    title: Team breakfast
    date: "2025-09-05"
    startTime: "08:30"
    endTime: "09:30"
    location: kitchen
    category: social
  - title: Quarterly planning
    date: "2025-09-10"
    startTime: "13:00"
    endTime: "17:00"
    notificationTime: 60
`

func TestImportSeed(t *testing.T) {
	ctx := context.Background()
	m := New(db.OpenTest(t))

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFixture), 0644))

	require.NoError(t, m.ImportSeed(ctx, path))

	events, err := m.queryEvents(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "seed-breakfast", events[0].ID)
	assert.Equal(t, "Team breakfast", events[0].Title)
	assert.NotEmpty(t, events[1].ID) // assigned when the fixture omits it
	assert.Equal(t, 60, events[1].NotificationTime)

	// Re-importing is a no-op: explicit IDs are kept as-is and omitted ones
	// are derived deterministically from the event's identifying fields.
	require.NoError(t, m.ImportSeed(ctx, path))
	events, err = m.queryEvents(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestImportSeedRejectsInvalidFixtures(t *testing.T) {
	ctx := context.Background()
	m := New(db.OpenTest(t))
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("events:\n  - title: x\n    date: nope\n    startTime: \"09:00\"\n    endTime: \"10:00\"\n"), 0644))
	assert.Error(t, m.ImportSeed(ctx, bad))

	assert.Error(t, m.ImportSeed(ctx, filepath.Join(dir, "missing.yaml")))
}
