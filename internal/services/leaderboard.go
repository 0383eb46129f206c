package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
	apperrors "github.com/levelup-app/levelup-backend/pkg/errors"
	"gorm.io/gorm"
)

// LeaderboardEntry is the ranked view served to clients. Derived data only:
// it is rebuilt or repositioned from UserProgressionState, never authored.
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"userId"`
	XPTotal int    `json:"xpTotal"`
	Level   int    `json:"level"`
}

type boardEntry struct {
	userID  string
	xp      int
	level   int
	version int64 // per-user ledger sequence the value was derived from
}

// LeaderboardIndex keeps a globally ordered view over users, sorted by
// (xpTotal desc, userId asc) for deterministic tie-breaks. Entries are
// repositioned one at a time on progression changes rather than re-sorting
// the world. Upserts are monotone on version so a superseded XP value can
// never overwrite a newer one that already landed.
type LeaderboardIndex struct {
	mu      sync.RWMutex
	ordered []*boardEntry
	byUser  map[string]*boardEntry
}

var Board = NewLeaderboardIndex()

func NewLeaderboardIndex() *LeaderboardIndex {
	return &LeaderboardIndex{
		byUser: make(map[string]*boardEntry),
	}
}

// before reports whether a ranks ahead of b.
func before(aXP int, aID string, bXP int, bID string) bool {
	if aXP != bXP {
		return aXP > bXP
	}
	return aID < bID
}

// insertPos binary-searches for where an entry with the given key belongs.
func (ix *LeaderboardIndex) insertPos(xp int, userID string) int {
	return sort.Search(len(ix.ordered), func(i int) bool {
		e := ix.ordered[i]
		return !before(e.xp, e.userID, xp, userID)
	})
}

// Upsert repositions (or inserts) a user's entry. Calls with a version at or
// below the currently indexed one are dropped: they carry superseded values.
func (ix *LeaderboardIndex) Upsert(userID string, xp, level int, version int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cur, ok := ix.byUser[userID]; ok {
		if version <= cur.version {
			return // stale, a newer value already landed
		}
		pos := ix.insertPos(cur.xp, cur.userID)
		if pos < len(ix.ordered) && ix.ordered[pos] == cur {
			ix.ordered = append(ix.ordered[:pos], ix.ordered[pos+1:]...)
		}
		cur.xp, cur.level, cur.version = xp, level, version
		pos = ix.insertPos(xp, userID)
		ix.ordered = append(ix.ordered, nil)
		copy(ix.ordered[pos+1:], ix.ordered[pos:])
		ix.ordered[pos] = cur
		return
	}

	e := &boardEntry{userID: userID, xp: xp, level: level, version: version}
	ix.byUser[userID] = e
	pos := ix.insertPos(xp, userID)
	ix.ordered = append(ix.ordered, nil)
	copy(ix.ordered[pos+1:], ix.ordered[pos:])
	ix.ordered[pos] = e
}

// Rebuild replaces the whole index from snapshot rows. Used at startup and
// after repair.
func (ix *LeaderboardIndex) Rebuild(states []models.UserProgressionState) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.ordered = make([]*boardEntry, 0, len(states))
	ix.byUser = make(map[string]*boardEntry, len(states))
	for _, s := range states {
		e := &boardEntry{userID: s.UserID, xp: s.XPTotal, level: s.Level, version: s.LastEventSeq}
		ix.byUser[s.UserID] = e
		ix.ordered = append(ix.ordered, e)
	}
	sort.Slice(ix.ordered, func(i, j int) bool {
		a, b := ix.ordered[i], ix.ordered[j]
		return before(a.xp, a.userID, b.xp, b.userID)
	})
}

func (ix *LeaderboardIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ordered)
}

func toEntry(e *boardEntry, rank int) LeaderboardEntry {
	return LeaderboardEntry{Rank: rank, UserID: e.userID, XPTotal: e.xp, Level: e.level}
}

// TopN returns the k best-ranked entries.
func (ix *LeaderboardIndex) TopN(k int) []LeaderboardEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k > len(ix.ordered) {
		k = len(ix.ordered)
	}
	out := make([]LeaderboardEntry, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, toEntry(ix.ordered[i], i+1))
	}
	return out
}

// rankOfLocked returns the 0-based position of a user's entry; callers hold
// at least the read lock. The (xp, userID) key is unique so the binary
// search lands exactly on the entry.
func (ix *LeaderboardIndex) rankOfLocked(e *boardEntry) int {
	pos := ix.insertPos(e.xp, e.userID)
	if pos < len(ix.ordered) && ix.ordered[pos] == e {
		return pos
	}
	// Defensive linear fallback; unreachable while the index is consistent.
	for i, o := range ix.ordered {
		if o == e {
			return i
		}
	}
	return -1
}

// RankOf returns a user's entry with their 1-based rank. NotFound for users
// with no progression state yet.
func (ix *LeaderboardIndex) RankOf(userID string) (LeaderboardEntry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.byUser[userID]
	if !ok {
		return LeaderboardEntry{}, apperrors.NotFound("user has no progression state yet")
	}
	return toEntry(e, ix.rankOfLocked(e)+1), nil
}

// Around returns the user's entry with up to `window` neighbors on each
// side, for "nearby competitors" views.
func (ix *LeaderboardIndex) Around(userID string, window int) ([]LeaderboardEntry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.byUser[userID]
	if !ok {
		return nil, apperrors.NotFound("user has no progression state yet")
	}
	pos := ix.rankOfLocked(e)

	lo := pos - window
	if lo < 0 {
		lo = 0
	}
	hi := pos + window
	if hi > len(ix.ordered)-1 {
		hi = len(ix.ordered) - 1
	}

	out := make([]LeaderboardEntry, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, toEntry(ix.ordered[i], i+1))
	}
	return out, nil
}

// RebuildLeaderboard warms the index from all persisted snapshots.
func RebuildLeaderboard(db *gorm.DB) error {
	var states []models.UserProgressionState
	if err := db.Find(&states).Error; err != nil {
		return err
	}
	Board.Rebuild(states)
	return nil
}

// TopNCached serves the top-k page through the redis cache. Staleness is
// bounded by the configured TTL and writes invalidate the page keys, so a
// fresh XP value shows up immediately on the next read.
func TopNCached(k int) []LeaderboardEntry {
	cacheKey := fmt.Sprintf("leaderboard:top:%d", k)
	var cached []LeaderboardEntry
	if err := database.CacheGet(cacheKey, &cached); err == nil {
		return cached
	}

	entries := Board.TopN(k)
	ttl := 10
	if config.AppConfig != nil && config.AppConfig.LeaderboardCacheTTL > 0 {
		ttl = config.AppConfig.LeaderboardCacheTTL
	}
	_ = database.CacheSet(cacheKey, entries, time.Duration(ttl)*time.Second)
	return entries
}

// InvalidateLeaderboardCache clears cached pages (call after any XP change).
// A cache failure is harmless: ranks stay correct via the in-memory index.
func InvalidateLeaderboardCache() {
	_ = database.CacheInvalidate("leaderboard:top:*")
}
