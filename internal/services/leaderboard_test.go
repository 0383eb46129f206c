package services

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/levelup-app/levelup-backend/internal/models"
	apperrors "github.com/levelup-app/levelup-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestLeaderboard_OrderingAndRank(t *testing.T) {
	ix := NewLeaderboardIndex()

	ix.Upsert("carol", 300, 3, 1)
	ix.Upsert("alice", 500, 3, 1)
	ix.Upsert("bob", 500, 3, 1) // tie with alice, userId breaks it
	ix.Upsert("dave", 100, 2, 1)

	top := ix.TopN(10)
	assert.Len(t, top, 4)
	assert.Equal(t, "alice", top[0].UserID)
	assert.Equal(t, "bob", top[1].UserID)
	assert.Equal(t, "carol", top[2].UserID)
	assert.Equal(t, "dave", top[3].UserID)
	for i, e := range top {
		assert.Equal(t, i+1, e.Rank)
	}

	entry, err := ix.RankOf("carol")
	assert.NoError(t, err)
	assert.Equal(t, 3, entry.Rank)
	assert.Equal(t, 300, entry.XPTotal)

	_, err = ix.RankOf("nobody")
	appErr, ok := err.(*apperrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, 404, appErr.Code)

	// TopN never returns more than exists
	assert.Len(t, ix.TopN(2), 2)
}

func TestLeaderboard_RepositionOnUpdate(t *testing.T) {
	ix := NewLeaderboardIndex()
	ix.Upsert("a", 100, 2, 1)
	ix.Upsert("b", 200, 2, 1)
	ix.Upsert("c", 300, 3, 1)

	// a overtakes everyone
	ix.Upsert("a", 400, 3, 2)
	top := ix.TopN(3)
	assert.Equal(t, "a", top[0].UserID)
	assert.Equal(t, 400, top[0].XPTotal)
	assert.Equal(t, "c", top[1].UserID)
	assert.Equal(t, "b", top[2].UserID)
	assert.Equal(t, 3, ix.Len())
}

func TestLeaderboard_MonotoneVersions(t *testing.T) {
	ix := NewLeaderboardIndex()
	ix.Upsert("a", 100, 2, 1)
	ix.Upsert("a", 300, 3, 3)

	// A late-arriving write derived from an older ledger position must not
	// regress the indexed value.
	ix.Upsert("a", 200, 2, 2)

	entry, err := ix.RankOf("a")
	assert.NoError(t, err)
	assert.Equal(t, 300, entry.XPTotal)
}

func TestLeaderboard_Around(t *testing.T) {
	ix := NewLeaderboardIndex()
	for i := 1; i <= 9; i++ {
		ix.Upsert(fmt.Sprintf("u%d", i), i*100, 1, 1)
	}
	// Order is u9 (900) down to u1 (100)

	entries, err := ix.Around("u5", 2)
	assert.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, "u7", entries[0].UserID)
	assert.Equal(t, 3, entries[0].Rank)
	assert.Equal(t, "u5", entries[2].UserID)
	assert.Equal(t, "u3", entries[4].UserID)

	// Window clipped at the top of the board
	entries, err = ix.Around("u9", 3)
	assert.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, 1, entries[0].Rank)

	_, err = ix.Around("nobody", 2)
	assert.Error(t, err)
}

// Property check against a model: for random states, TopN equals a plain
// sort by (xpTotal desc, userId asc) and RankOf matches the 1-based position.
func TestLeaderboard_MatchesSortedModel(t *testing.T) {
	ix := NewLeaderboardIndex()
	rng := rand.New(rand.NewSource(42))

	type row struct {
		id string
		xp int
	}
	var rows []row
	for i := 0; i < 100; i++ {
		r := row{id: fmt.Sprintf("user%03d", i), xp: rng.Intn(20) * 10} // many ties
		rows = append(rows, r)
		ix.Upsert(r.id, r.xp, LevelForXP(r.xp), 1)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].xp != rows[j].xp {
			return rows[i].xp > rows[j].xp
		}
		return rows[i].id < rows[j].id
	})

	top := ix.TopN(len(rows))
	assert.Len(t, top, len(rows))
	for i, want := range rows {
		assert.Equal(t, want.id, top[i].UserID)
		assert.Equal(t, want.xp, top[i].XPTotal)
		assert.Equal(t, i+1, top[i].Rank)

		entry, err := ix.RankOf(want.id)
		assert.NoError(t, err)
		assert.Equal(t, i+1, entry.Rank)
	}
}

func TestLeaderboard_RebuildFromSnapshots(t *testing.T) {
	db := setupTestDB(t)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("u%d", i)
		createTestUser(t, db, id, models.RoleUser)
		state := models.UserProgressionState{UserID: id, XPTotal: i * 100, Level: LevelForXP(i * 100), LastEventSeq: int64(i)}
		assert.NoError(t, db.Create(&state).Error)
	}

	assert.NoError(t, RebuildLeaderboard(db))
	assert.Equal(t, 3, Board.Len())

	top := Board.TopN(1)
	assert.Equal(t, "u3", top[0].UserID)
	assert.Equal(t, 300, top[0].XPTotal)
}
