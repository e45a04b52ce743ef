package state_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/Napageneral/bubble/internal/state"
	"github.com/Napageneral/bubble/internal/testutil"
)

func TestKVRoundTrip(t *testing.T) {
	d := testutil.OpenTestDB(t)
	ctx := context.Background()
	kv := state.New(d, state.ScopeApp)

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, "a")
	if err != nil || !ok || v != "2" {
		t.Fatalf("Get(a)=%q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Fatal("expected key to be gone")
	}
}

func TestKVScopesAndPrefixes(t *testing.T) {
	d := testutil.OpenTestDB(t)
	ctx := context.Background()
	app := state.New(d, state.ScopeApp)
	live := state.New(d, state.ScopeLive)

	for _, k := range []string{"bc:quarantine:2", "bc:quarantine:1", "bc:contacts", "settings"} {
		if err := app.Set(ctx, k, "x"); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := live.Set(ctx, "bc:quarantine:9", "other scope"); err != nil {
		t.Fatalf("Set live: %v", err)
	}

	got, err := app.Keys(ctx, "bc:quarantine:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"bc:quarantine:1", "bc:quarantine:2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys=%v want %v", got, want)
	}
}
