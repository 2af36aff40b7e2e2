package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

type doc struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("mother/1", doc{Name: "Asha"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got doc
	if err := s.Get("mother/1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Asha" {
		t.Errorf("unexpected doc: %+v", got)
	}
	if err := s.Get("mother/2", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PutUnique(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutUnique("mother/1", doc{Name: "Asha"}, "email/asha@example.com"); err != nil {
		t.Fatalf("first put: %v", err)
	}

	err := s.PutUnique("mother/2", doc{Name: "Other"}, "email/asha@example.com")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var got doc
	if err := s.Get("mother/2", &got); !errors.Is(err, ErrNotFound) {
		t.Error("expected conflicting write to leave nothing behind")
	}

	if err := s.PutUnique("mother/1", doc{Name: "Again"}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected primary key conflict, got %v", err)
	}

	if err := s.Resolve("email/asha@example.com", &got); err != nil || got.Name != "Asha" {
		t.Errorf("resolve: %+v %v", got, err)
	}
}

func TestStore_ScanOrderAndPaging(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("record/7/%s", TimeKey(base.Add(time.Duration(i)*time.Minute)))
		s.Put(key, doc{N: i})
	}
	s.Put("record/8/"+TimeKey(base), doc{N: 99})

	collect := func(newestFirst bool, offset, limit int) []int {
		var out []int
		err := s.Scan("record/7/", newestFirst, offset, limit, func(v []byte) error {
			var d doc
			json.Unmarshal(v, &d)
			out = append(out, d.N)
			return nil
		})
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		return out
	}

	if got := collect(true, 0, 1); len(got) != 1 || got[0] != 4 {
		t.Errorf("expected latest 4, got %v", got)
	}
	if got := collect(true, 1, 2); len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Errorf("expected [3 2], got %v", got)
	}
	if got := collect(false, 0, 0); len(got) != 5 || got[0] != 0 {
		t.Errorf("expected oldest first, got %v", got)
	}

	n, err := s.Count("record/7/")
	if err != nil || n != 5 {
		t.Errorf("expected 5 records, got %d %v", n, err)
	}
}

func TestStore_Ping(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected error after close")
	}
}

func TestTimeKey_Sortable(t *testing.T) {
	a := TimeKey(time.Unix(9, 0))
	b := TimeKey(time.Unix(10, 0))
	if !(a < b) || len(a) != len(b) {
		t.Errorf("expected fixed-width ascending keys, got %s %s", a, b)
	}
}

func TestStore_NowStrictlyIncreasing(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	prev := s.Now()
	for i := 0; i < 1000; i++ {
		next := s.Now()
		if !next.After(prev) {
			t.Fatalf("clock went backwards or repeated: %v then %v", prev, next)
		}
		prev = next
	}
}
