package membership

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// fakeStore tracks collection membership in memory.
type fakeStore struct {
	members map[string][]string // collection id -> ticket ids
	calls   []string
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{members: make(map[string][]string)}
	for _, id := range ids {
		s.members[id] = nil
	}
	return s
}

func (s *fakeStore) AddCollectionTicket(_ context.Context, kind model.CollectionKind, cid, tid string) error {
	s.calls = append(s.calls, "add "+string(kind)+" "+cid)
	m, ok := s.members[cid]
	if !ok {
		return fmt.Errorf("collection %s: %w", cid, store.ErrNotFound)
	}
	for _, id := range m {
		if id == tid {
			return nil
		}
	}
	s.members[cid] = append(m, tid)
	return nil
}

func (s *fakeStore) RemoveCollectionTicket(_ context.Context, kind model.CollectionKind, cid, tid string) error {
	s.calls = append(s.calls, "remove "+string(kind)+" "+cid)
	m, ok := s.members[cid]
	if !ok {
		return fmt.Errorf("collection %s: %w", cid, store.ErrNotFound)
	}
	out := m[:0]
	for _, id := range m {
		if id != tid {
			out = append(out, id)
		}
	}
	s.members[cid] = out
	return nil
}

func TestReconcile(t *testing.T) {
	s := newFakeStore("sp-1", "sp-2", "sp-3")
	s.members["sp-1"] = []string{"tk-1"}
	s.members["sp-2"] = []string{"tk-1"}

	got, err := Reconcile(context.Background(), s, model.KindSprint, "tk-1",
		[]string{"sp-1", "sp-2"}, []string{"sp-3", "sp-1", "sp-3", ""})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff := cmp.Diff([]string{"sp-3", "sp-1"}, got); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"remove sprint sp-2", "add sprint sp-3"}, s.calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	if len(s.members["sp-2"]) != 0 || len(s.members["sp-3"]) != 1 || len(s.members["sp-1"]) != 1 {
		t.Errorf("members = %v", s.members)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	s := newFakeStore("tg-1")
	for i := 0; i < 3; i++ {
		got, err := Reconcile(context.Background(), s, model.KindTag, "tk-1", nil, []string{"tg-1"})
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if diff := cmp.Diff([]string{"tg-1"}, got); diff != "" {
			t.Errorf("result (-want +got):\n%s", diff)
		}
	}
	if n := len(s.members["tg-1"]); n != 1 {
		t.Errorf("tg-1 has %d members, want 1", n)
	}
}

func TestReconcile_UnknownCollection(t *testing.T) {
	s := newFakeStore()
	_, err := Reconcile(context.Background(), s, model.KindRelease, "tk-1", nil, []string{"rl-404"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcile_InvalidKind(t *testing.T) {
	if _, err := Reconcile(context.Background(), newFakeStore(), "label", "tk-1", nil, nil); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestReconcile_EmptyDesired(t *testing.T) {
	s := newFakeStore("rl-1")
	s.members["rl-1"] = []string{"tk-1"}
	got, err := Reconcile(context.Background(), s, model.KindRelease, "tk-1", []string{"rl-1"}, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("result = %v, want empty", got)
	}
	if len(s.members["rl-1"]) != 0 {
		t.Errorf("rl-1 members = %v", s.members["rl-1"])
	}
}

func TestDiff(t *testing.T) {
	added, removed := Diff([]string{"a", "b", "b"}, []string{"b", "c", "c"})
	if diff := cmp.Diff([]string{"c"}, added); diff != "" {
		t.Errorf("added (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a"}, removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
}
