package bus_test

import (
	"context"
	"testing"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/testutil"
)

func TestEmitAndList(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	if err := bus.Emit(ctx, db, bus.TypeImportCompleted, map[string]int{"added": 2}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := bus.Emit(ctx, db, bus.TypeLikelyMatched, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := bus.Emit(ctx, db, "", nil); err == nil {
		t.Fatal("expected error for empty type")
	}

	all, err := bus.List(ctx, db, 0, 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Type != bus.TypeImportCompleted || all[0].Payload == nil || *all[0].Payload != `{"added":2}` {
		t.Fatalf("unexpected events: %+v", all)
	}
	if all[1].Payload != nil {
		t.Fatalf("nil payload should stay NULL, got %q", *all[1].Payload)
	}

	after, err := bus.List(ctx, db, all[0].Seq, 10, "")
	if err != nil || len(after) != 1 || after[0].Seq != all[1].Seq {
		t.Fatalf("List after seq: %+v err=%v", after, err)
	}
	typed, err := bus.List(ctx, db, 0, 10, bus.TypeLikelyMatched)
	if err != nil || len(typed) != 1 {
		t.Fatalf("List by type: %+v err=%v", typed, err)
	}
}
