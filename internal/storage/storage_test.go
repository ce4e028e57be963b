package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestFileStoreCRUD(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rows", "invites.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := s.AppendRow(ctx, []string{name}); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	if err := s.ReplaceRow(ctx, 1, []string{"B"}); err != nil {
		t.Fatalf("ReplaceRow: %v", err)
	}
	if err := s.DeleteRow(ctx, 0); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	rows, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := [][]string{{"B"}, {"c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}

	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore reload: %v", err)
	}
	rows, _ = reloaded.ListAll(ctx)
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("reloaded rows = %v, want %v", rows, want)
	}
}

func TestFileStoreOutOfRange(t *testing.T) {
	s, _ := NewFileStore("")
	ctx := context.Background()

	if err := s.ReplaceRow(ctx, 0, []string{"x"}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("ReplaceRow err = %v, want ErrOutOfRange", err)
	}
	if err := s.DeleteRow(ctx, -1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("DeleteRow err = %v, want ErrOutOfRange", err)
	}
}

func TestFileStoreListIsCopy(t *testing.T) {
	s, _ := NewFileStore("")
	ctx := context.Background()
	_ = s.AppendRow(ctx, []string{"a"})

	rows, _ := s.ListAll(ctx)
	rows[0][0] = "mutated"

	again, _ := s.ListAll(ctx)
	if again[0][0] != "a" {
		t.Fatalf("ListAll leaked internal slice: %v", again)
	}
}

func TestFileStoreFailedWriteKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "invites.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if err := s.AppendRow(ctx, []string{name}); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	// a directory in place of the file makes every write fail
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	if err := s.AppendRow(ctx, []string{"c"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("AppendRow err = %v, want ErrUnavailable", err)
	}
	if err := s.ReplaceRow(ctx, 0, []string{"A"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ReplaceRow err = %v, want ErrUnavailable", err)
	}
	if err := s.DeleteRow(ctx, 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("DeleteRow err = %v, want ErrUnavailable", err)
	}

	rows, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := [][]string{{"a"}, {"b"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows after failed writes = %v, want %v", rows, want)
	}
}

func TestNewSheetsStoreMissingCredentials(t *testing.T) {
	_, err := NewSheetsStore(context.Background(), SheetsConfig{
		SpreadsheetID:   "sheet",
		SheetName:       "Invites",
		CredentialsFile: filepath.Join(t.TempDir(), "nope.json"),
	}, zerolog.Nop())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestA1Row(t *testing.T) {
	if got := A1Row("Invites", 0); got != "Invites!A1" {
		t.Fatalf("A1Row(0) = %q", got)
	}
	if got := A1Row("Invites", 9); got != "Invites!A10" {
		t.Fatalf("A1Row(9) = %q", got)
	}
}
