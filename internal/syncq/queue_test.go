package syncq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/auralis/auralis-go/internal/config"
	"github.com/auralis/auralis-go/internal/store"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu        sync.Mutex
	scrobbles []string
	favorites []FavoritePayload
	nowPlay   []string
	syncs     int
	failAll   bool
	failOnce  map[string]int // track id -> remaining failures
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failOnce: make(map[string]int)}
}

func (a *fakeAPI) maybeFail(key string) error {
	if a.failAll {
		return errors.New("server unreachable")
	}
	if n := a.failOnce[key]; n > 0 {
		a.failOnce[key] = n - 1
		return errors.New("transient failure")
	}
	return nil
}

func (a *fakeAPI) Scrobble(ctx context.Context, trackID string, playedAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.maybeFail(trackID); err != nil {
		return err
	}
	a.scrobbles = append(a.scrobbles, trackID)
	return nil
}

func (a *fakeAPI) ReportNowPlaying(ctx context.Context, trackID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.maybeFail(trackID); err != nil {
		return err
	}
	a.nowPlay = append(a.nowPlay, trackID)
	return nil
}

func (a *fakeAPI) SetFavorite(ctx context.Context, trackID string, favorite bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.maybeFail(trackID); err != nil {
		return err
	}
	a.favorites = append(a.favorites, FavoritePayload{TrackID: trackID, Favorite: favorite})
	return nil
}

func (a *fakeAPI) TriggerExternalSync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.maybeFail("external"); err != nil {
		return err
	}
	a.syncs++
	return nil
}

type fakeProfiles struct{ id string }

func (p fakeProfiles) ActiveProfileID() string { return p.id }

func newTestQueue(api *fakeAPI) (*Queue, store.ActionStore) {
	st := store.NewMemoryActionStore()
	q := NewQueue(st, api, fakeProfiles{id: "user-1"}, config.SyncConfig{MaxRetries: 3}, zap.NewNop())
	return q, st
}

func TestQueueAndReplayInOrder(t *testing.T) {
	api := newFakeAPI()
	q, st := newTestQueue(api)

	q.QueueAction(ActionSetFavorite, &FavoritePayload{TrackID: "t1", Favorite: true})
	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "t1", PlayedAt: time.Now()})
	q.QueueAction(ActionSetFavorite, &FavoritePayload{TrackID: "t1", Favorite: false})

	count, _ := st.Count()
	if count != 3 {
		t.Fatalf("Expected 3 queued actions, got %d", count)
	}

	if err := q.ProcessPendingActions(context.Background()); err != nil {
		t.Fatalf("ProcessPendingActions failed: %v", err)
	}

	// Favorite toggles must replay in creation order so the final state
	// on the server matches the last local toggle
	if len(api.favorites) != 2 {
		t.Fatalf("Expected 2 favorite calls, got %d", len(api.favorites))
	}
	if !api.favorites[0].Favorite || api.favorites[1].Favorite {
		t.Errorf("Expected toggles replayed in order, got %+v", api.favorites)
	}
	if len(api.scrobbles) != 1 || api.scrobbles[0] != "t1" {
		t.Errorf("Expected one scrobble for t1, got %v", api.scrobbles)
	}

	count, _ = st.Count()
	if count != 0 {
		t.Errorf("Expected queue drained, got %d", count)
	}
}

func TestActionDroppedAfterMaxRetries(t *testing.T) {
	api := newFakeAPI()
	api.failAll = true
	q, st := newTestQueue(api)

	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "t1", PlayedAt: time.Now()})

	for i := 0; i < 2; i++ {
		if err := q.ProcessPendingActions(context.Background()); err != nil {
			t.Fatalf("ProcessPendingActions failed: %v", err)
		}
		count, _ := st.Count()
		if count != 1 {
			t.Fatalf("Expected action kept after %d failures, got count %d", i+1, count)
		}
	}

	// Third failure exhausts the retry budget
	if err := q.ProcessPendingActions(context.Background()); err != nil {
		t.Fatalf("ProcessPendingActions failed: %v", err)
	}
	count, _ := st.Count()
	if count != 0 {
		t.Errorf("Expected action dropped after 3 failures, got count %d", count)
	}
}

func TestTransientFailureThenSuccess(t *testing.T) {
	api := newFakeAPI()
	api.failOnce["t1"] = 1
	q, st := newTestQueue(api)

	q.QueueAction(ActionNowPlaying, &NowPlayingPayload{TrackID: "t1"})

	q.ProcessPendingActions(context.Background())
	count, _ := st.Count()
	if count != 1 {
		t.Fatalf("Expected action kept after transient failure, got %d", count)
	}

	q.ProcessPendingActions(context.Background())
	if len(api.nowPlay) != 1 {
		t.Errorf("Expected now-playing delivered on retry, got %v", api.nowPlay)
	}
	count, _ = st.Count()
	if count != 0 {
		t.Errorf("Expected queue drained, got %d", count)
	}
}

func TestQueueActionWithoutProfileDegrades(t *testing.T) {
	api := newFakeAPI()
	st := store.NewMemoryActionStore()
	q := NewQueue(st, api, fakeProfiles{id: ""}, config.SyncConfig{MaxRetries: 3}, zap.NewNop())

	// Must not panic or error; the action simply does not sync
	q.QueueAction(ActionExternalSync, nil)
	count, _ := st.Count()
	if count != 0 {
		t.Errorf("Expected no queued action without a profile, got %d", count)
	}
}

func TestQueueActionWithMemoryStoreFallback(t *testing.T) {
	api := newFakeAPI()
	st := store.NewMemoryActionStore()
	if st.Available() {
		t.Fatal("Expected memory store to report non-durable")
	}
	q := NewQueue(st, api, fakeProfiles{id: "user-1"}, config.SyncConfig{MaxRetries: 3}, zap.NewNop())

	// Non-durable persistence must not drop actions within the process
	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "t1", PlayedAt: time.Now()})
	count, _ := st.Count()
	if count != 1 {
		t.Fatalf("Expected action queued in memory fallback, got count %d", count)
	}

	if err := q.ProcessPendingActions(context.Background()); err != nil {
		t.Fatalf("ProcessPendingActions failed: %v", err)
	}
	if len(api.scrobbles) != 1 {
		t.Errorf("Expected scrobble replayed from memory fallback, got %v", api.scrobbles)
	}
}

type switchableProfiles struct {
	mu sync.Mutex
	id string
}

func (p *switchableProfiles) ActiveProfileID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *switchableProfiles) set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = id
}

func TestReplaySkipsOtherProfilesActions(t *testing.T) {
	api := newFakeAPI()
	st := store.NewMemoryActionStore()
	profiles := &switchableProfiles{id: "alice"}
	q := NewQueue(st, api, profiles, config.SyncConfig{MaxRetries: 3}, zap.NewNop())

	q.QueueAction(ActionSetFavorite, &FavoritePayload{TrackID: "t1", Favorite: true})

	// Another profile is active: alice's action must stay queued untouched
	profiles.set("bob")
	if err := q.ProcessPendingActions(context.Background()); err != nil {
		t.Fatalf("ProcessPendingActions failed: %v", err)
	}
	if len(api.favorites) != 0 {
		t.Fatalf("Expected no replay under another profile, got %+v", api.favorites)
	}
	count, _ := st.Count()
	if count != 1 {
		t.Fatalf("Expected action kept for its own profile, got count %d", count)
	}

	// Switching back replays it
	profiles.set("alice")
	if err := q.ProcessPendingActions(context.Background()); err != nil {
		t.Fatalf("ProcessPendingActions failed: %v", err)
	}
	if len(api.favorites) != 1 || api.favorites[0].TrackID != "t1" {
		t.Errorf("Expected favorite replayed once profile returns, got %+v", api.favorites)
	}
	count, _ = st.Count()
	if count != 0 {
		t.Errorf("Expected queue drained, got %d", count)
	}
}

func TestFailedActionDoesNotBlockLaterActions(t *testing.T) {
	api := newFakeAPI()
	api.failOnce["bad"] = 5
	q, _ := newTestQueue(api)

	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "bad", PlayedAt: time.Now()})
	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "good", PlayedAt: time.Now()})

	q.ProcessPendingActions(context.Background())
	if len(api.scrobbles) != 1 || api.scrobbles[0] != "good" {
		t.Errorf("Expected later action processed past a failing one, got %v", api.scrobbles)
	}
}

func TestExternalSyncAction(t *testing.T) {
	api := newFakeAPI()
	q, _ := newTestQueue(api)

	q.QueueAction(ActionExternalSync, nil)
	q.ProcessPendingActions(context.Background())
	if api.syncs != 1 {
		t.Errorf("Expected one external sync trigger, got %d", api.syncs)
	}
}

type flakyPinger struct {
	mu     sync.Mutex
	online bool
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online {
		return nil
	}
	return errors.New("offline")
}

func (p *flakyPinger) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func TestWatcherReplaysOnReconnect(t *testing.T) {
	api := newFakeAPI()
	q, _ := newTestQueue(api)
	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "t1", PlayedAt: time.Now()})

	pinger := &flakyPinger{}
	w := NewWatcher(pinger, q, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Offline: nothing replays
	time.Sleep(50 * time.Millisecond)
	api.mu.Lock()
	replayed := len(api.scrobbles)
	api.mu.Unlock()
	if replayed != 0 {
		t.Fatal("Expected no replay while offline")
	}

	// Transition to online triggers a replay pass
	pinger.set(true)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		api.mu.Lock()
		replayed = len(api.scrobbles)
		api.mu.Unlock()
		if replayed == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if replayed != 1 {
		t.Fatalf("Expected replay after reconnect, got %d", replayed)
	}

	cancel()
	<-done
}

func TestWatcherProcessesAtStartupWhenOnline(t *testing.T) {
	api := newFakeAPI()
	q, _ := newTestQueue(api)
	q.QueueAction(ActionScrobble, &ScrobblePayload{TrackID: "t1", PlayedAt: time.Now()})

	pinger := &flakyPinger{online: true}
	w := NewWatcher(pinger, q, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		api.mu.Lock()
		n := len(api.scrobbles)
		api.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Expected startup replay while online")
}
