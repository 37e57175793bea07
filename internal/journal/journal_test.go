package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"receptionist/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sample(id, slot string) events.BookingCreated {
	return events.BookingCreated{
		BookingID:   id,
		PatientName: "Ali Khan",
		Branch:      "Sialkot",
		Day:         "Monday",
		Date:        "2025-11-17",
		Slot:        slot,
		CreatedAt:   time.Date(2025, 11, 17, 4, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndListRun(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, db.Record(ctx, sample("APT1001", "10-11")))
	require.NoError(t, db.Record(ctx, sample("APT1002", "11-12")))

	entries, err := db.ListRun(ctx, db.RunID())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "APT1001", entries[0].BookingID)
	assert.Equal(t, "11-12", entries[1].Slot)
	assert.True(t, entries[0].CreatedAt.Equal(time.Date(2025, 11, 17, 4, 0, 0, 0, time.UTC)))

	other, err := db.ListRun(ctx, "another-run")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecord_RejectsDuplicateKeyWithinRun(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	require.NoError(t, db.Record(ctx, sample("APT1001", "10-11")))
	assert.Error(t, db.Record(ctx, sample("APT1002", "10-11")))
}

func TestHandle(t *testing.T) {
	db := openTemp(t)

	payload, err := json.Marshal(sample("APT1001", "10-11"))
	require.NoError(t, err)

	require.NoError(t, db.Handle(events.Event{Type: events.TypeBookingCreated, Payload: payload}))
	require.NoError(t, db.Handle(events.Event{Type: "other", Payload: []byte("not json")}))
	assert.Error(t, db.Handle(events.Event{Type: events.TypeBookingCreated, Payload: []byte("{")}))

	entries, err := db.ListRun(context.Background(), db.RunID())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackupAndCleanup(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.Record(context.Background(), sample("APT1001", "10-11")))

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "journal_1.db")
	require.NoError(t, db.Backup(dest))
	assert.FileExists(t, dest)

	copyDB, err := Open(dest, nil)
	require.NoError(t, err)
	defer copyDB.Close()
	entries, err := copyDB.ListRun(context.Background(), db.RunID())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	old := filepath.Join(dir, "old.db")
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o600))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(keep, past, past))

	deleted, err := db.CleanupBackups(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, old)
	assert.FileExists(t, keep)
}
