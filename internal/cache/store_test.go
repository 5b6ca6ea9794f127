package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bgzfiltra/internal/bugzilla"
)

type countingClient struct {
	records []bugzilla.Record
	err     error
	calls   int
}

func (c *countingClient) FetchProduct(_ context.Context, _ string) ([]bugzilla.Record, error) {
	c.calls++
	return c.records, c.err
}

func ptr(s string) *string { return &s }

func sampleRecords() []bugzilla.Record {
	return []bugzilla.Record{
		{ID: 1, Assignee: "x@y", Component: "A", Status: "NEW", Priority: "P1", Flags: []bugzilla.Flag{}},
		{ID: 2, Assignee: "x@y", Component: "A", Status: "RESOLVED", Priority: "P2", Whiteboard: "openL3:1",
			Flags: []bugzilla.Flag{{Name: ptr("needinfo"), Status: "?"}, {Status: "+"}}},
	}
}

func TestStore_RoundTripWithoutTracker(t *testing.T) {
	dir := t.TempDir()
	live := &countingClient{records: sampleRecords()}

	written, err := NewStore(live, dir).GetRecords(context.Background(), "Foo", false)
	if err != nil {
		t.Fatalf("live GetRecords failed: %v", err)
	}
	if live.calls != 1 {
		t.Fatalf("expected one live fetch, got %d", live.calls)
	}

	offline := &countingClient{err: errors.New("tracker must not be contacted")}
	read, err := NewStore(offline, dir).GetRecords(context.Background(), "Foo", true)
	if err != nil {
		t.Fatalf("cached GetRecords failed: %v", err)
	}
	if offline.calls != 0 {
		t.Errorf("expected no tracker call, got %d", offline.calls)
	}
	if !reflect.DeepEqual(written, read) {
		t.Errorf("round trip mismatch:\nwrote %+v\nread  %+v", written, read)
	}
}

func TestStore_UseCacheWithoutSnapshotFetchesAndWrites(t *testing.T) {
	dir := t.TempDir()
	client := &countingClient{records: sampleRecords()}
	store := NewStore(client, dir)

	if _, err := store.GetRecords(context.Background(), "Foo", true); err != nil {
		t.Fatalf("GetRecords failed: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected live fetch, got %d calls", client.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache-Foo.jsonl")); err != nil {
		t.Errorf("expected snapshot to be written: %v", err)
	}

	if _, hit, err := store.Lookup(context.Background(), "Foo", true); err != nil || !hit {
		t.Errorf("expected second lookup to hit snapshot, hit=%v err=%v", hit, err)
	}
	if client.calls != 1 {
		t.Errorf("expected no further fetch, got %d calls", client.calls)
	}
}

func TestStore_NoCacheAlwaysFetchesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	client := &countingClient{records: sampleRecords()}
	store := NewStore(client, dir)

	if _, err := store.GetRecords(context.Background(), "Foo", false); err != nil {
		t.Fatal(err)
	}
	client.records = client.records[:1]
	if _, err := store.GetRecords(context.Background(), "Foo", false); err != nil {
		t.Fatal(err)
	}
	if client.calls != 2 {
		t.Errorf("expected two fetches, got %d", client.calls)
	}

	loaded, err := store.Load("Foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected overwritten snapshot with 1 record, got %d", len(loaded))
	}
}

func TestStore_EmptyResultStillCached(t *testing.T) {
	dir := t.TempDir()
	client := &countingClient{records: nil}
	store := NewStore(client, dir)

	if _, err := store.GetRecords(context.Background(), "Empty", false); err != nil {
		t.Fatal(err)
	}
	records, hit, err := store.Lookup(context.Background(), "Empty", true)
	if err != nil {
		t.Fatal(err)
	}
	if !hit || len(records) != 0 {
		t.Errorf("expected empty snapshot hit, hit=%v len=%d", hit, len(records))
	}
	if client.calls != 1 {
		t.Errorf("expected a single fetch, got %d", client.calls)
	}
}

func TestStore_CorruptSnapshotIsFatal(t *testing.T) {
	dir := t.TempDir()
	client := &countingClient{records: sampleRecords()}
	store := NewStore(client, dir)

	if err := os.WriteFile(store.Path("Foo"), []byte("{\"id\":1}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.GetRecords(context.Background(), "Foo", true)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decErr.Line != 2 {
		t.Errorf("expected line 2, got %d", decErr.Line)
	}
	if client.calls != 0 {
		t.Errorf("corrupt snapshot must not fall back to a live fetch")
	}
}

func TestStore_FetchErrorLeavesSnapshotUntouched(t *testing.T) {
	dir := t.TempDir()
	client := &countingClient{records: sampleRecords()}
	store := NewStore(client, dir)

	if _, err := store.GetRecords(context.Background(), "Foo", false); err != nil {
		t.Fatal(err)
	}
	client.err = &bugzilla.QueryError{Op: "query", Err: errors.New("boom")}

	if _, err := store.GetRecords(context.Background(), "Foo", false); err == nil {
		t.Fatal("expected fetch error")
	}
	loaded, err := store.Load("Foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Errorf("expected previous snapshot to survive, got %d records", len(loaded))
	}
}

func TestStore_PathIsDeterministic(t *testing.T) {
	store := NewStore(nil, "")
	tests := []struct {
		product string
		want    string
	}{
		{"Foo", "cache-Foo.jsonl"},
		{"SUSE Linux Enterprise Server 15 SP4", "cache-SUSE%20Linux%20Enterprise%20Server%2015%20SP4.jsonl"},
		{"a/b", "cache-a%2Fb.jsonl"},
		{"a_b", "cache-a_b.jsonl"},
	}

	for _, tt := range tests {
		if got := store.Path(tt.product); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.product, got, tt.want)
		}
	}
}

func TestStore_SimilarProductsDoNotShareSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(nil, dir)

	if err := store.Save("a/b", []bugzilla.Record{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	exists, err := store.Exists("a_b")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Errorf("snapshot of %q must not be visible as %q", "a/b", "a_b")
	}

	loaded, err := store.Load("a/b")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("expected 2 records, got %d", len(loaded))
	}
}
