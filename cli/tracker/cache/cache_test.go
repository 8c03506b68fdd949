package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/stretchr/testify/assert"
)

func TestLiveLocations_PutGetRemove(t *testing.T) {
	c := New()

	_, ok := c.Get("42")
	assert.False(t, ok, "empty cache must report absence")

	first := types.Position{Latitude: 17.41, Longitude: 78.47, ObservedAt: time.Unix(100, 0)}
	c.Put("42", first)

	got, ok := c.Get("42")
	assert.True(t, ok)
	assert.Equal(t, first, got)

	// older observedAt still overwrites
	older := types.Position{Latitude: 17.5, Longitude: 78.5, ObservedAt: time.Unix(50, 0)}
	c.Put("42", older)
	got, _ = c.Get("42")
	assert.Equal(t, older, got)

	assert.Equal(t, 1, c.Len())

	c.Remove("42")
	_, ok = c.Get("42")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Remove("missing")
}

func TestLiveLocations_RemoveIf(t *testing.T) {
	observed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	flushed := types.Position{Latitude: 1, Longitude: 2, ObservedAt: observed}
	next := types.Position{Latitude: 1, Longitude: 2, ObservedAt: observed.Add(time.Second)}

	tests := []struct {
		name    string
		cached  *types.Position
		removed bool
	}{
		{name: "Same sample", cached: &flushed, removed: true},
		{name: "Newer sample arrived", cached: &next, removed: false},
		{name: "No entry", cached: nil, removed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if tt.cached != nil {
				c.Put("7", *tt.cached)
			}

			assert.Equal(t, tt.removed, c.RemoveIf("7", flushed))

			got, ok := c.Get("7")
			if tt.cached == nil || tt.removed {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, *tt.cached, got)
		})
	}
}

func TestLiveLocations_Snapshot(t *testing.T) {
	c := New()
	c.Put("1", types.Position{Latitude: 1, Longitude: 1})
	c.Put("2", types.Position{Latitude: 2, Longitude: 2})

	snapshot := c.Snapshot()
	assert.Len(t, snapshot, 2)

	snapshot["3"] = types.Position{}
	assert.Equal(t, 2, c.Len(), "snapshot must be a copy")
}

func TestLiveLocations_ConcurrentWritersNoTornValues(t *testing.T) {
	c := New()
	samples := []types.Position{
		{Latitude: 10, Longitude: 10},
		{Latitude: 20, Longitude: 20},
	}

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(sample types.Position) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Put("42", sample)
			}
		}(samples[w])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if got, ok := c.Get("42"); ok {
				assert.Equal(t, got.Latitude, got.Longitude, "torn value observed")
			}
		}
	}()

	wg.Wait()
	<-done

	got, ok := c.Get("42")
	assert.True(t, ok)
	assert.Contains(t, samples, got)
}
