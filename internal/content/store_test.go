package content

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte("scanned affidavit pages")

	id, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if id != ContentID(data) {
		t.Errorf("id = %s, want content fingerprint", id)
	}

	got, err := s.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("fetched bytes differ")
	}
}

func TestMemoryStorePutIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte("duplicate upload")

	id1, _ := s.Put(ctx, data)
	id2, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %s vs %s", id1, id2)
	}
}

func TestMemoryStoreFetchMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Fetch(context.Background(), "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte("original")

	id, _ := s.Put(ctx, data)
	got, _ := s.Fetch(ctx, id)
	got[0] = 'X'

	again, err := s.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("fetch after mutation: %v", err)
	}
	if !bytes.Equal(again, []byte("original")) {
		t.Error("stored blob was mutated through a returned slice")
	}
}
