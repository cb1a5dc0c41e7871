package memory

import (
	"context"
	"testing"
	"time"

	"hisaab/internal/core"
	"hisaab/internal/storage"
	"hisaab/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestFindReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	saved, err := s.Save(ctx, core.Hisaab{
		Title: "t", Label: "l", OwnerID: "u1",
		Content: []core.LineItem{{Key: "a", Value: "1"}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved.Content[0].Value = "999"

	got, err := s.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Content[0].Value != "1" {
		t.Fatalf("stored content was mutated through returned copy: %q", got.Content[0].Value)
	}
}

func TestFindBreaksTiesByInsertionOrder(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	var want []string
	for i := 0; i < 8; i++ {
		h, err := s.Save(ctx, core.Hisaab{Title: "same", Label: "l", OwnerID: "u1"})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		want = append(want, h.ID)
	}

	for _, order := range []string{storage.SortDateDesc, storage.SortDateAsc, storage.SortTitleAsc, storage.SortTitleDesc} {
		for run := 0; run < 5; run++ {
			got, err := s.Find(ctx, storage.Filter{OwnerID: "u1", Sort: order})
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			for i, h := range got {
				if h.ID != want[i] {
					t.Fatalf("sort %s run %d: position %d is %s, want %s", order, run, i, h.ID, want[i])
				}
			}
		}
	}
}
