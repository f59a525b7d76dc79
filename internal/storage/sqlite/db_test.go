package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecentMatches(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "matches.db"))
	require.NoError(t, err)
	defer db.Close()

	start := time.Unix(1000, 0)
	end := time.Unix(1100, 0)
	results := []TankResult{
		{TankID: "tank-a", Team: 0, FinalHP: 100, TicksAlive: 100, DirectHits: 3},
		{TankID: "tank-b", Team: 1, FinalHP: 0, TicksAlive: 80, GotDirectHits: 3},
	}
	require.NoError(t, db.RecordMatch(start, end, 100, "tank-a", results))

	matches, err := db.RecentMatches(10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "tank-a", matches[0].WinnerTankID)
	require.Equal(t, uint64(100), matches[0].Ticks)
}

func TestRecordMatchDraw(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "matches.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.RecordMatch(time.Unix(0, 0), time.Unix(1, 0), 1, "", nil))

	matches, err := db.RecentMatches(10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "", matches[0].WinnerTankID)
}
