package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golfpools/worker/internal/config"
	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/models"
)

// testNow is a Thursday, mid-tournament.
var testNow = time.Date(2025, time.July, 17, 18, 0, 0, 0, time.UTC)

type fakeLeagueStore struct {
	mu        sync.Mutex
	active    map[string][]*models.League
	ended     []*models.League
	open      []*models.League
	reminders []*models.League

	winners       map[int][]int
	remindersSent []int
	err           error
}

func newFakeLeagueStore() *fakeLeagueStore {
	return &fakeLeagueStore{
		active:  map[string][]*models.League{},
		winners: map[int][]int{},
	}
}

func (f *fakeLeagueStore) ActiveByTour(_ context.Context, tour string) ([]*models.League, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.League
	for _, l := range f.active[tour] {
		if !l.IsFinalized {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeagueStore) ActiveTours(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var tours []string
	for tour, leagues := range f.active {
		if len(leagues) > 0 {
			tours = append(tours, tour)
		}
	}
	sort.Strings(tours)
	return tours, nil
}

func (f *fakeLeagueStore) EndedUnfinalized(_ context.Context) ([]*models.League, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.League
	for _, l := range f.ended {
		if !l.IsFinalized {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeagueStore) OpenForSubstitution(_ context.Context) ([]*models.League, error) {
	return f.open, f.err
}

func (f *fakeLeagueStore) NeedingReminder(_ context.Context, _ time.Duration) ([]*models.League, error) {
	return f.reminders, f.err
}

func (f *fakeLeagueStore) MarkReminderSent(_ context.Context, leagueID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remindersSent = append(f.remindersSent, leagueID)
	return f.err
}

func (f *fakeLeagueStore) SetWinners(_ context.Context, leagueID int, winnerUserIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.winners[leagueID] = winnerUserIDs
	for _, l := range f.ended {
		if l.ID == leagueID {
			l.IsFinalized = true
		}
	}
	return nil
}

type fakePlayerStore struct {
	mu      sync.Mutex
	players map[int]*models.Player
	updates []models.ScoreUpdate
	nextID  int
	resets  int
	err     error
}

func newFakePlayerStore(players ...*models.Player) *fakePlayerStore {
	f := &fakePlayerStore{players: map[int]*models.Player{}, nextID: 1000}
	for _, p := range players {
		f.players[p.ID] = p
	}
	return f
}

func (f *fakePlayerStore) Upsert(_ context.Context, p *models.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.players {
		if existing.DGID == p.DGID {
			p.ID = existing.ID
			f.players[p.ID] = p
			return nil
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.players[p.ID] = p
	return nil
}

func (f *fakePlayerStore) ByDGIDs(_ context.Context, dgIDs []int64) (map[int64]*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]*models.Player{}
	for _, p := range f.players {
		for _, id := range dgIDs {
			if p.DGID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (f *fakePlayerStore) ByIDs(_ context.Context, ids []int) (map[int]*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[int]*models.Player{}
	for _, id := range ids {
		if p, ok := f.players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePlayerStore) UpdateScores(_ context.Context, updates []models.ScoreUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, updates...)
	for _, u := range updates {
		if p, ok := f.players[u.PlayerID]; ok {
			p.CurrentScore = u.Score
			p.Status = u.Status
			p.Thru = u.Thru
		}
	}
	return nil
}

func (f *fakePlayerStore) ResetScores(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.resets++
	for _, p := range f.players {
		p.CurrentScore = 0
		p.Status = models.StatusActive
	}
	return int64(len(f.players)), nil
}

type swap struct {
	entryID, from, to int
	totalOdds         float64
}

type fakeEntryStore struct {
	entries map[int][]*models.Entry
	swaps   []swap
	err     error
}

func (f *fakeEntryStore) ByLeague(_ context.Context, leagueID int) ([]*models.Entry, error) {
	return f.entries[leagueID], f.err
}

func (f *fakeEntryStore) SwapPlayer(_ context.Context, entryID, from, to int, totalOdds float64) error {
	if f.err != nil {
		return f.err
	}
	f.swaps = append(f.swaps, swap{entryID, from, to, totalOdds})
	return nil
}

type fakeScoreStore struct {
	archives map[int][]models.HistoricalScore
	err      error
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{archives: map[int][]models.HistoricalScore{}}
}

func (f *fakeScoreStore) ExistsForLeague(_ context.Context, leagueID int) (bool, error) {
	return len(f.archives[leagueID]) > 0, f.err
}

func (f *fakeScoreStore) ArchiveLeague(_ context.Context, leagueID int, scores []models.HistoricalScore) error {
	if f.err != nil {
		return f.err
	}
	f.archives[leagueID] = append(f.archives[leagueID], scores...)
	return nil
}

func (f *fakeScoreStore) ByLeague(_ context.Context, leagueID int) (map[int]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[int]int{}
	for _, s := range f.archives[leagueID] {
		out[s.PlayerID] = s.Score
	}
	return out, nil
}

type fakeTracker struct {
	mu    sync.Mutex
	ran   map[string]bool
	marks int
	err   error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{ran: map[string]bool{}}
}

func trackerKey(task string, day time.Time) string {
	return fmt.Sprintf("%s:%s", task, day.UTC().Format("2006-01-02"))
}

func (f *fakeTracker) MarkRan(_ context.Context, task string, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := trackerKey(task, day)
	if f.ran[key] {
		return false, nil
	}
	f.ran[key] = true
	f.marks++
	return true, nil
}

func (f *fakeTracker) RanOn(_ context.Context, task string, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ran[trackerKey(task, day)], f.err
}

type fakeBucketStore struct {
	pools    map[int][]*models.Player
	existing map[string]bool
	created  []*models.Bucket
	err      error
}

func newFakeBucketStore() *fakeBucketStore {
	return &fakeBucketStore{pools: map[int][]*models.Player{}, existing: map[string]bool{}}
}

func (f *fakeBucketStore) ExistsByName(_ context.Context, name string) (bool, error) {
	return f.existing[name], f.err
}

func (f *fakeBucketStore) Create(_ context.Context, bucket *models.Bucket, playerIDs []int) error {
	if f.err != nil {
		return f.err
	}
	f.existing[bucket.Name] = true
	f.created = append(f.created, bucket)
	return nil
}

func (f *fakeBucketStore) PlayersForLeague(_ context.Context, leagueID int) ([]*models.Player, error) {
	return f.pools[leagueID], f.err
}

func (f *fakeBucketStore) DeleteStale(_ context.Context, _ time.Time) (int64, error) {
	return 0, f.err
}

type fakeFeed struct {
	stats    map[string][]feed.LiveStat
	fields   map[string]*feed.FieldUpdate
	statsFn  func(ctx context.Context, tour string) ([]feed.LiveStat, error)
	statsErr error
	fieldErr error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{stats: map[string][]feed.LiveStat{}, fields: map[string]*feed.FieldUpdate{}}
}

func (f *fakeFeed) LiveStats(ctx context.Context, tour string) ([]feed.LiveStat, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx, tour)
	}
	return f.stats[tour], f.statsErr
}

func (f *fakeFeed) FieldUpdates(_ context.Context, tour string) (*feed.FieldUpdate, error) {
	return f.fields[tour], f.fieldErr
}

// ctxAwareLocker refuses commands on a done context, the way the Redis
// client does. The MemoryLocker underneath never looks at ctx.
type ctxAwareLocker struct {
	inner lock.Locker
}

func (l ctxAwareLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.inner.Acquire(ctx, key, owner, ttl)
}

func (l ctxAwareLocker) Release(ctx context.Context, key, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.inner.Release(ctx, key, owner)
}

func (l ctxAwareLocker) AnyHeld(ctx context.Context, prefix string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.inner.AnyHeld(ctx, prefix)
}

type rankChange struct {
	leagueID, entryID, oldRank, newRank int
}

type reminder struct {
	userID, leagueID int
}

type fakeNotifier struct {
	mu          sync.Mutex
	finalized   []int
	reminders   []reminder
	substituted []swap
	rankChanges []rankChange
}

func (f *fakeNotifier) LeagueFinalized(_ context.Context, leagueID int, _ string, _ []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, leagueID)
}

func (f *fakeNotifier) DeadlineReminder(_ context.Context, userID, leagueID int, _ string, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, reminder{userID, leagueID})
}

func (f *fakeNotifier) PlayerSubstituted(_ context.Context, leagueID, entryID, out, in int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.substituted = append(f.substituted, swap{entryID, out, in, 0})
}

func (f *fakeNotifier) RankChanged(_ context.Context, leagueID, entryID int, _ string, oldRank, newRank int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankChanges = append(f.rankChanges, rankChange{leagueID, entryID, oldRank, newRank})
}

type enqueued struct {
	name string
	fn   Func
	opts Options
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
}

func (f *fakeQueue) Enqueue(name string, fn Func, opts Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueued{name, fn, opts})
}

type fakeCache struct {
	mu           sync.Mutex
	scores       []string
	leaderboards []int
	published    []string
}

func (f *fakeCache) InvalidateScores(_ context.Context, tour string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, tour)
}

func (f *fakeCache) InvalidateLeaderboard(_ context.Context, leagueID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaderboards = append(f.leaderboards, leagueID)
}

func (f *fakeCache) PublishScoresChanged(_ context.Context, tour string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, tour)
}

// testEnv bundles the fakes behind a ready-to-use Deps.
type testEnv struct {
	deps    *Deps
	leagues *fakeLeagueStore
	players *fakePlayerStore
	entries *fakeEntryStore
	scores  *fakeScoreStore
	tracker *fakeTracker
	buckets *fakeBucketStore
	feed    *fakeFeed
	notify  *fakeNotifier
	queue   *fakeQueue
	cache   *fakeCache
	locker  *lock.MemoryLocker
}

func newTestEnv() *testEnv {
	env := &testEnv{
		leagues: newFakeLeagueStore(),
		players: newFakePlayerStore(),
		entries: &fakeEntryStore{entries: map[int][]*models.Entry{}},
		scores:  newFakeScoreStore(),
		tracker: newFakeTracker(),
		buckets: newFakeBucketStore(),
		feed:    newFakeFeed(),
		notify:  &fakeNotifier{},
		queue:   &fakeQueue{},
		cache:   &fakeCache{},
		locker:  lock.NewMemoryLocker(),
	}

	cfg := &config.Config{
		Tours:               []string{"pga"},
		TournamentDays:      []string{"Thursday", "Friday", "Saturday", "Sunday"},
		PollInterval:        180 * time.Second,
		PollLockTTL:         150 * time.Second,
		PollSoftTimeout:     time.Minute,
		PollHardTimeout:     2 * time.Minute,
		PollStartOffset:     20 * time.Minute,
		PollWindowAfter:     5 * time.Hour,
		PollMaxRetries:      3,
		PollRetryBackoff:    15 * time.Second,
		SupervisorLockTTL:   55 * time.Second,
		ReminderWindow:      24 * time.Hour,
		StatusPenalty:       10,
		RankChangeThreshold: 5,
		OddsWindow:          0.20,
	}

	env.deps = &Deps{
		Cfg:      cfg,
		Locker:   env.locker,
		Queue:    env.queue,
		Feed:     env.feed,
		Leagues:  env.leagues,
		Players:  env.players,
		Entries:  env.entries,
		Scores:   env.scores,
		Tracker:  env.tracker,
		Buckets:  env.buckets,
		Notifier: env.notify,
		Cache:    env.cache,
		Clock:    func() time.Time { return testNow },
	}
	return env
}

func activeLeague(id int, tour string) *models.League {
	return &models.League{
		ID:        id,
		Name:      fmt.Sprintf("league-%d", id),
		Tour:      tour,
		StartDate: testNow.Add(-24 * time.Hour),
		EndDate:   testNow.Add(48 * time.Hour),
	}
}
