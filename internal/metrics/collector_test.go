// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_RecordAndSnapshot(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordRequest("tmdb", 100*time.Millisecond)
	c.RecordRequest("tmdb", 300*time.Millisecond)
	c.RecordError("tmdb")
	c.RecordCacheHit("tmdb", "item")
	c.RecordCacheMiss("tmdb", "search")
	c.RecordNewItem("tmdb")
	c.RecordSearch("tmdb")

	snap := c.Snapshot()
	s, ok := snap["tmdb"]
	if !ok {
		t.Fatalf("snapshot = %v, no tmdb entry", snap)
	}
	if s.Requests != 2 || s.Errors != 1 || s.Cached != 1 || s.Misses != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.NewItems != 1 || s.Searches != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.AvgAPITimeMS != 200 {
		t.Errorf("AvgAPITimeMS = %v, want 200", s.AvgAPITimeMS)
	}
}

func TestCollector_SnapshotDoesNotReset(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordSearch("jikan")

	_ = c.Snapshot()
	if got := c.Snapshot()["jikan"].Searches; got != 1 {
		t.Errorf("Searches = %d after second snapshot, want 1", got)
	}
}

func TestCollector_DrainResets(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordSearch("deezer")
	c.RecordCacheHit("deezer", "search")

	first := c.Drain()
	if first["deezer"].Searches != 1 || first["deezer"].Cached != 1 {
		t.Errorf("first drain = %+v", first["deezer"])
	}
	if second := c.Drain(); len(second) != 0 {
		t.Errorf("second drain = %v, want empty", second)
	}
}

func TestCollector_Reset(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	before := c.Since()
	c.RecordSearch("bgg")

	time.Sleep(5 * time.Millisecond)
	c.Reset()

	if len(c.Snapshot()) != 0 {
		t.Error("counters survived Reset")
	}
	if !c.Since().After(before) {
		t.Error("Since not advanced by Reset")
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordRequest("x", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot()["x"].Requests; got != 800 {
		t.Errorf("Requests = %d, want 800", got)
	}
}

func TestCollector_AvgOnZeroRequests(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordError("y") // errors without any request must not divide by zero
	if got := c.Snapshot()["y"].AvgAPITimeMS; got != 0 {
		t.Errorf("AvgAPITimeMS = %v, want 0", got)
	}
}
