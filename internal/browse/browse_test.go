package browse

import (
	"context"
	"reflect"
	"testing"

	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/names"
	"github.com/Napageneral/bubble/internal/state"
	"github.com/Napageneral/bubble/internal/store"
	"github.com/Napageneral/bubble/internal/testutil"
)

var people = []contact.Contact{
	{ID: "1", FirstName: "Zoe", LastName: "Adams", Phone: "555-123-4567", Tags: []string{"Work", "Gym"}},
	{ID: "2", FirstName: "Adam", LastName: "Young", Email: "adam@acme.test", Company: "Acme", Tags: []string{"Work"}},
	{ID: "3", FirstName: "Mia", LastName: "Brown", Tags: []string{"Family"}},
	{ID: "4", FirstName: "Eli", LastName: "Stone", Tags: []string{"Gym", "Work", "Family"}},
}

func ids(cs []contact.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	if got := Search(people, "   "); len(got) != len(people) {
		t.Fatalf("blank term must return everything, got %d", len(got))
	}
	if got := ids(Search(people, "acme")); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("Search(acme)=%v", got)
	}
	if got := ids(Search(people, "5551234")); !reflect.DeepEqual(got, []string{"1"}) {
		t.Fatalf("digits search=%v", got)
	}
	if got := Search(people, "qqqq"); len(got) != 0 {
		t.Fatalf("expected no results, got %v", ids(got))
	}
}

func TestArrange(t *testing.T) {
	got := ids(Arrange(people, []string{"Work", "Gym"}, names.FirstLast))
	// Zoe has exactly Work+Gym (full); Adam and Eli partial; Mia none.
	want := []string{"1", "2", "4", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Arrange=%v want %v", got, want)
	}
	got = ids(Arrange(people, nil, names.LastFirst))
	if !reflect.DeepEqual(got, []string{"1", "3", "4", "2"}) {
		t.Fatalf("Arrange without selection=%v", got)
	}
}

func TestTagSummary(t *testing.T) {
	got := TagSummary(people, []string{"Family"}, "", true)
	want := []TagInfo{
		{Name: "Family", Count: 2, Status: TagSelected},
		{Name: "Gym", Count: 2, Status: TagRelevant},
		{Name: "Work", Count: 3, Status: TagRelevant},
	}
	// Gym and Work both co-occur with Family on Eli; Work has the higher count.
	want[1], want[2] = want[2], want[1]
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TagSummary=%+v want %+v", got, want)
	}

	got = TagSummary(people, []string{"Work", "Family"}, "y", false)
	if len(got) != 2 || got[0].Name != "Family" || got[1].Name != "Gym" || got[1].Status != TagRelevant {
		t.Fatalf("filtered summary=%+v", got)
	}
	got = TagSummary(people, []string{"Gym"}, "", false)
	for _, ti := range got {
		if ti.Name == "Family" && ti.Status != TagRelevant {
			t.Fatalf("Family should be relevant via Eli: %+v", got)
		}
	}
}

func TestSelectionPersistsAndNotifies(t *testing.T) {
	kv := state.New(testutil.OpenTestDB(t), state.ScopeApp)
	ctx := context.Background()
	sel := NewSelection(kv, logger.Discard())

	var seen [][]string
	unsubscribe := sel.Subscribe(func(tags []string) { seen = append(seen, tags) })
	defer unsubscribe()

	sel.Toggle(ctx, "Work")
	sel.Toggle(ctx, "Gym")
	sel.Toggle(ctx, "Work")
	if got := sel.Load(ctx); !reflect.DeepEqual(got, []string{"Gym"}) {
		t.Fatalf("Load=%v", got)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %v", seen)
	}

	fresh := NewSelection(kv, logger.Discard())
	if got := fresh.Load(ctx); !reflect.DeepEqual(got, []string{"Gym"}) {
		t.Fatalf("persisted=%v", got)
	}
	sel.Clear(ctx)
	if got := sel.Load(ctx); len(got) != 0 {
		t.Fatalf("after Clear=%v", got)
	}
}

func TestSelectionIgnoresNonStrings(t *testing.T) {
	kv := state.New(testutil.OpenTestDB(t), state.ScopeApp)
	ctx := context.Background()
	if err := kv.Set(ctx, SelectionKey, `["Work", 3, null, "Gym"]`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := NewSelection(kv, logger.Discard()).Load(ctx); !reflect.DeepEqual(got, []string{"Work", "Gym"}) {
		t.Fatalf("Load=%v", got)
	}
}

func TestTagRemovalCascade(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	kv := state.New(db, state.ScopeApp)
	st := store.New(kv, logger.Discard())
	sel := NewSelection(kv, logger.Discard())

	if err := st.Save(ctx, people); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sel.Set(ctx, []string{"Gym", "Family"})

	if _, err := st.RemoveTag(ctx, "Gym"); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	sel.Remove(ctx, "Gym")

	counts := TagCounts(st.Load(ctx))
	if _, ok := counts["Gym"]; ok {
		t.Fatalf("Gym still counted: %v", counts)
	}
	if counts["Work"] != 3 || counts["Family"] != 2 {
		t.Fatalf("other tags changed: %v", counts)
	}
	if got := sel.Load(ctx); !reflect.DeepEqual(got, []string{"Family"}) {
		t.Fatalf("selection=%v", got)
	}
	if len(st.Load(ctx)) != len(people) {
		t.Fatal("contacts must survive tag removal")
	}
}
