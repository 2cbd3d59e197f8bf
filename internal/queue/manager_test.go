package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"playhead/internal/logging"
	"playhead/internal/playback"
	"playhead/internal/queue"
)

type fakeResolver struct {
	calls []string
	fail  map[string]error
}

func (f *fakeResolver) ResolvePlaybackURL(_ context.Context, collectionID, itemID string) (string, error) {
	f.calls = append(f.calls, itemID)
	if err, ok := f.fail[itemID]; ok {
		return "", err
	}
	return fmt.Sprintf("https://cdn.example.com/%s/%s.mp3", collectionID, itemID), nil
}

func item(id string) queue.Item {
	return queue.Item{ID: id, Title: "Episode " + id, Collection: "Morning Show", CollectionID: "c1"}
}

func newManager(t *testing.T, resolver *fakeResolver) (*queue.Manager, *playback.SimTransport) {
	t.Helper()
	transport := playback.NewSimTransport(playback.SimOptions{})
	clock := playback.NewClock(transport, logging.NewNop())
	manager, err := queue.NewManager(queue.Options{
		Clock:    clock,
		Resolver: resolver,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return manager, transport
}

func assertInvariant(t *testing.T, m *queue.Manager) {
	t.Helper()
	if m.State() == queue.StateIdle {
		return
	}
	current := m.Current()
	if current < 0 || current >= len(m.Items()) {
		t.Fatalf("queue invariant violated: state=%s current=%d length=%d", m.State(), current, len(m.Items()))
	}
}

func TestPlayNowReplacesQueue(t *testing.T) {
	resolver := &fakeResolver{}
	manager, transport := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.EnqueueLater(ctx, item("a")); err != nil {
		t.Fatalf("EnqueueLater failed: %v", err)
	}
	if err := manager.PlayNow(ctx, item("b")); err != nil {
		t.Fatalf("PlayNow failed: %v", err)
	}

	items := manager.Items()
	if len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("expected queue [b], got %v", items)
	}
	if manager.Current() != 0 || manager.State() != queue.StatePlaying {
		t.Fatalf("unexpected pointer/state: %d %s", manager.Current(), manager.State())
	}
	if url, ok := transport.Source(); !ok || url != "https://cdn.example.com/c1/b.mp3" {
		t.Fatalf("unexpected transport source: %q %v", url, ok)
	}
	assertInvariant(t, manager)
}

func TestEnqueueNextInsertsAfterCurrent(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("A"), item("B"), item("C")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	if err := manager.EnqueueNext(ctx, item("D")); err != nil {
		t.Fatalf("EnqueueNext failed: %v", err)
	}

	var ids []string
	for _, it := range manager.Items() {
		ids = append(ids, it.ID)
	}
	want := []string{"A", "D", "B", "C"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	if manager.Current() != 0 {
		t.Fatalf("currentIndex must be unchanged, got %d", manager.Current())
	}
}

func TestEnqueueOnIdleBehavesLikePlayNow(t *testing.T) {
	for _, op := range []string{"next", "later"} {
		t.Run(op, func(t *testing.T) {
			resolver := &fakeResolver{}
			manager, _ := newManager(t, resolver)
			ctx := context.Background()

			var err error
			if op == "next" {
				err = manager.EnqueueNext(ctx, item("solo"))
			} else {
				err = manager.EnqueueLater(ctx, item("solo"))
			}
			if err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
			if manager.State() != queue.StatePlaying || manager.Current() != 0 {
				t.Fatalf("expected playing at index 0, got %s/%d", manager.State(), manager.Current())
			}
		})
	}
}

func TestShuffleIsAPermutation(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	var collection []queue.Item
	for i := 0; i < 20; i++ {
		collection = append(collection, item(fmt.Sprintf("e%02d", i)))
	}

	if err := manager.ShuffleCollectionNow(ctx, collection); err != nil {
		t.Fatalf("ShuffleCollectionNow failed: %v", err)
	}

	got := manager.Items()
	if len(got) != len(collection) {
		t.Fatalf("expected %d items, got %d", len(collection), len(got))
	}
	var wantIDs, gotIDs []string
	for i := range collection {
		wantIDs = append(wantIDs, collection[i].ID)
		gotIDs = append(gotIDs, got[i].ID)
	}
	sort.Strings(wantIDs)
	sort.Strings(gotIDs)
	if fmt.Sprint(wantIDs) != fmt.Sprint(gotIDs) {
		t.Fatalf("shuffle must be a permutation: want multiset %v, got %v", wantIDs, gotIDs)
	}
	assertInvariant(t, manager)
}

func TestShuffleEmptyCollectionGoesIdle(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)

	if err := manager.ShuffleCollectionNow(context.Background(), nil); err != nil {
		t.Fatalf("ShuffleCollectionNow failed: %v", err)
	}
	if manager.State() != queue.StateIdle || manager.Current() != -1 {
		t.Fatalf("expected idle queue, got %s/%d", manager.State(), manager.Current())
	}
}

func TestRemoveActiveRepointsToFormerNext(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("A"), item("B"), item("C")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	if err := manager.SetCurrent(ctx, 1); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if err := manager.Remove(ctx, "B"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	items := manager.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	active, ok := manager.CurrentItem()
	if !ok || active.ID != "C" {
		t.Fatalf("expected former index-2 item active, got %+v ok=%v", active, ok)
	}
	assertInvariant(t, manager)
}

func TestRemoveLastActiveGoesIdle(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayNow(ctx, item("only")); err != nil {
		t.Fatalf("PlayNow failed: %v", err)
	}
	if err := manager.Remove(ctx, "only"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if manager.State() != queue.StateIdle || manager.Current() != -1 {
		t.Fatalf("expected idle after removing last item, got %s/%d", manager.State(), manager.Current())
	}
}

func TestRemoveDeletesAllOccurrences(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("X"), item("A"), item("X"), item("B"), item("X")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	if err := manager.SetCurrent(ctx, 3); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if err := manager.Remove(ctx, "X"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	var ids []string
	for _, it := range manager.Items() {
		ids = append(ids, it.ID)
	}
	if fmt.Sprint(ids) != fmt.Sprint([]string{"A", "B"}) {
		t.Fatalf("expected [A B], got %v", ids)
	}
	active, _ := manager.CurrentItem()
	if active.ID != "B" {
		t.Fatalf("expected B to stay active, got %s", active.ID)
	}
	assertInvariant(t, manager)
}

func TestSetCurrentOutOfRangeIsNoOp(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("A"), item("B")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	before := len(resolver.calls)
	if err := manager.SetCurrent(ctx, 7); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if manager.Current() != 0 {
		t.Fatalf("expected pointer unchanged, got %d", manager.Current())
	}
	if len(resolver.calls) != before {
		t.Fatal("out-of-range jump must not trigger a reload")
	}
}

func TestHandleEndedAdvancesThenIdles(t *testing.T) {
	resolver := &fakeResolver{}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("A"), item("B")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	if err := manager.HandleEnded(ctx); err != nil {
		t.Fatalf("HandleEnded failed: %v", err)
	}
	if active, _ := manager.CurrentItem(); active.ID != "B" {
		t.Fatalf("expected auto-advance to B, got %s", active.ID)
	}
	if manager.State() != queue.StatePlaying {
		t.Fatalf("expected playback to continue, got %s", manager.State())
	}

	if err := manager.HandleEnded(ctx); err != nil {
		t.Fatalf("HandleEnded failed: %v", err)
	}
	if manager.State() != queue.StateIdle || manager.Current() != -1 {
		t.Fatalf("expected idle at end of queue, got %s/%d", manager.State(), manager.Current())
	}
}

func TestResolveFailureLeavesPointerAdvanced(t *testing.T) {
	resolveErr := errors.New("episode not found")
	resolver := &fakeResolver{fail: map[string]error{"bad": resolveErr}}
	manager, _ := newManager(t, resolver)
	ctx := context.Background()

	if err := manager.PlayNow(ctx, item("bad")); err == nil {
		t.Fatal("expected load error")
	}
	if manager.Current() != 0 {
		t.Fatalf("pointer must remain advanced after load failure, got %d", manager.Current())
	}
	if manager.LoadErr() == nil {
		t.Fatal("expected load error to be surfaced")
	}
	before := len(resolver.calls)
	if len(resolver.calls) != before {
		t.Fatal("no automatic retry expected")
	}
}

func TestActiveItemCallbackCarriesPreviousPosition(t *testing.T) {
	resolver := &fakeResolver{}
	transport := playback.NewSimTransport(playback.SimOptions{Durations: map[string]float64{
		"https://cdn.example.com/c1/A.mp3": 100,
	}})
	clock := playback.NewClock(transport, logging.NewNop())

	type change struct {
		prev, next string
		prevPos    float64
	}
	var changes []change
	manager, err := queue.NewManager(queue.Options{
		Clock:    clock,
		Resolver: resolver,
		Logger:   logging.NewNop(),
		OnActiveItem: func(prev *queue.Item, prevPos float64, next *queue.Item) {
			c := change{prevPos: prevPos}
			if prev != nil {
				c.prev = prev.ID
			}
			if next != nil {
				c.next = next.ID
			}
			changes = append(changes, c)
		},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	if err := manager.PlayCollectionNow(ctx, []queue.Item{item("A"), item("B")}); err != nil {
		t.Fatalf("PlayCollectionNow failed: %v", err)
	}
	transport.Advance(42)
	if err := manager.Next(ctx); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("expected two active-item changes, got %d", len(changes))
	}
	if changes[1].prev != "A" || changes[1].next != "B" {
		t.Fatalf("unexpected change: %+v", changes[1])
	}
	if changes[1].prevPos != 42 {
		t.Fatalf("expected previous position 42, got %v", changes[1].prevPos)
	}
}
