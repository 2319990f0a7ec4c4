package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesDirectories(t *testing.T) {
	openTestStore(t)
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestRecordAndListInvocations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, inv := range []Invocation{
		{HookName: "help", Pattern: "ctrl+alt+h", Action: "fn:show_help", Consumed: true},
		{HookName: "assistant", Pattern: "ctrl+;", Action: "llm:prompt", Consumed: true},
		{HookName: "broken", Pattern: "ctrl+b", Action: "cmd:nope", Err: "exit status 127"},
	} {
		if err := store.RecordInvocation(ctx, inv); err != nil {
			t.Fatalf("RecordInvocation: %v", err)
		}
	}

	got, err := store.RecentInvocations(ctx, 2)
	if err != nil {
		t.Fatalf("RecentInvocations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].HookName != "broken" {
		t.Errorf("newest first: got %q", got[0].HookName)
	}
	if got[0].Err != "exit status 127" {
		t.Errorf("Err = %q", got[0].Err)
	}
	if got[1].HookName != "assistant" || !got[1].Consumed {
		t.Errorf("second entry = %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestRecordAndListTurns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, turn := range []Turn{
		{ConversationID: "c1", Role: "user", Content: "list the files"},
		{ConversationID: "c1", Role: "assistant", Content: "Running ls", Command: "ls -la"},
		{ConversationID: "c2", Role: "user", Content: "unrelated"},
	} {
		if err := store.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	got, err := store.ConversationTurns(ctx, "c1")
	if err != nil {
		t.Fatalf("ConversationTurns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != "user" || got[1].Command != "ls -la" {
		t.Errorf("turns out of order or incomplete: %+v", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RecordInvocation(ctx, Invocation{HookName: "help", Pattern: "ctrl+h", Action: "fn:show_help"}); err != nil {
		t.Fatalf("RecordInvocation: %v", err)
	}
	store.Close()

	store, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, err := store.RecentInvocations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInvocations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}
