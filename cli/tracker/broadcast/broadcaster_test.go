package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	id string

	mu        sync.Mutex
	delivered []types.Position
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) Deliver(_ types.VehicleID, position types.Position) {
	s.mu.Lock()
	s.delivered = append(s.delivered, position)
	s.mu.Unlock()
}

func (s *recordingSubscriber) positions() []types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Position(nil), s.delivered...)
}

func position(lat float64) types.Position {
	return types.Position{Latitude: lat, Longitude: lat}
}

func TestBroadcaster_PublishUpdatesCacheAndFansOut(t *testing.T) {
	live := cache.New()
	b := New(live)

	first := &recordingSubscriber{id: "a"}
	second := &recordingSubscriber{id: "b"}
	other := &recordingSubscriber{id: "c"}

	b.Join(first, "42")
	b.Join(second, "42")
	b.Join(other, "7")

	delivered := b.Publish("42", position(17.41))
	assert.Equal(t, 2, delivered)

	cached, ok := live.Get("42")
	require.True(t, ok)
	assert.Equal(t, position(17.41), cached)

	assert.Equal(t, []types.Position{position(17.41)}, first.positions())
	assert.Equal(t, []types.Position{position(17.41)}, second.positions())
	assert.Empty(t, other.positions(), "other topics must not receive the event")
}

func TestBroadcaster_PublishWithoutSubscribersStillCaches(t *testing.T) {
	live := cache.New()
	b := New(live)

	assert.Equal(t, 0, b.Publish("42", position(1)))

	cached, ok := live.Get("42")
	assert.True(t, ok)
	assert.Equal(t, position(1), cached)
}

func TestBroadcaster_JoinAfterPublishGetsColdStartFromCache(t *testing.T) {
	b := New(cache.New())
	b.Publish("42", position(17.41))

	observer := &recordingSubscriber{id: "observer"}
	got, hit := b.Join(observer, "42")

	assert.True(t, hit)
	assert.Equal(t, position(17.41), got)
	assert.Equal(t, []types.Position{position(17.41)}, observer.positions())

	b.Publish("42", position(17.42))
	assert.Equal(t, []types.Position{position(17.41), position(17.42)}, observer.positions())
}

func TestBroadcaster_JoinMissDeliversNothing(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}

	_, hit := b.Join(observer, "42")
	assert.False(t, hit)
	assert.Empty(t, observer.positions())
}

func TestBroadcaster_JoinIsIdempotent(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}

	b.Join(observer, "42")
	b.Join(observer, "42")

	assert.Equal(t, 1, b.Members("42"))
	b.Publish("42", position(1))
	assert.Len(t, observer.positions(), 1, "double join must not double deliver")
}

func TestBroadcaster_LeaveIsIdempotentAndCollectsEmptyRooms(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}

	b.Leave(observer, "42")
	assert.Equal(t, 0, b.Rooms())

	b.Join(observer, "42")
	assert.Equal(t, 1, b.Rooms())
	assert.True(t, b.IsMember("observer", "42"))

	b.Leave(observer, "42")
	b.Leave(observer, "42")
	assert.Equal(t, 0, b.Rooms())
	assert.False(t, b.IsMember("observer", "42"))

	b.Publish("42", position(1))
	assert.Empty(t, observer.positions())
}

func TestBroadcaster_LeaveAll(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}
	stay := &recordingSubscriber{id: "stay"}

	b.Join(observer, "1")
	b.Join(observer, "2")
	b.Join(stay, "2")

	left := b.LeaveAll(observer)
	assert.ElementsMatch(t, []types.VehicleID{"1", "2"}, left)
	assert.Equal(t, 1, b.Rooms())
	assert.Equal(t, 1, b.Subscribers())
	assert.Equal(t, 1, b.Members("2"))

	assert.Empty(t, b.LeaveAll(observer))
}

func TestBroadcaster_FIFOPerTopic(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}
	b.Join(observer, "42")

	var expected []types.Position
	for i := 0; i < 500; i++ {
		p := position(float64(i) / 10)
		expected = append(expected, p)
		b.Publish("42", p)
	}

	assert.Equal(t, expected, observer.positions())
}

func TestBroadcaster_OfferDurableOnlyToMembers(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}
	stranger := &recordingSubscriber{id: "stranger"}
	durable := position(3)

	b.Join(observer, "42")
	assert.True(t, b.Offer(observer, "42", durable))
	assert.Equal(t, []types.Position{durable}, observer.positions())

	assert.False(t, b.Offer(stranger, "42", durable))
	assert.False(t, b.Offer(stranger, "missing", durable))
	assert.Empty(t, stranger.positions())
}

func TestBroadcaster_OfferPrefersLiveValuePublishedMeanwhile(t *testing.T) {
	b := New(cache.New())
	observer := &recordingSubscriber{id: "observer"}

	b.Join(observer, "42")
	b.Publish("42", position(5))
	b.Offer(observer, "42", position(1))

	assert.Equal(t, []types.Position{position(5), position(5)}, observer.positions(),
		"durable value older than the live one must never be delivered after it")
}

func TestBroadcaster_ConcurrentJoinLeavePublish(t *testing.T) {
	live := cache.New()
	b := New(live)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			subscriber := &recordingSubscriber{id: fmt.Sprintf("sub-%d", w)}
			for i := 0; i < 200; i++ {
				b.Join(subscriber, "42")
				b.Publish("42", position(float64(w)))
				b.Leave(subscriber, "42")
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, b.Rooms())
	assert.Equal(t, 0, b.Subscribers())
	_, ok := live.Get("42")
	assert.True(t, ok)
}
