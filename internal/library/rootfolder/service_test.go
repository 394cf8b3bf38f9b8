package rootfolder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sportarr/sportarr/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, tdb.Logger), tdb
}

func TestAddValidatesPath(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	if _, err := svc.Add(ctx, filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("missing path: err = %v, want ErrPathNotFound", err)
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Add(ctx, file); !errors.Is(err, ErrPathNotDirectory) {
		t.Errorf("file path: err = %v, want ErrPathNotDirectory", err)
	}

	dir := t.TempDir()
	rf, err := svc.Add(ctx, dir)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !rf.Accessible {
		t.Error("fresh folder not accessible")
	}
	if rf.FreeSpace <= 0 {
		t.Error("free space not reported")
	}

	if _, err := svc.Add(ctx, dir); !errors.Is(err, ErrPathAlreadyExists) {
		t.Errorf("duplicate: err = %v, want ErrPathAlreadyExists", err)
	}
}

func TestPickForImportPrefersMostFree(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	small := t.TempDir()
	big := t.TempDir()
	if _, err := svc.Add(ctx, small); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Add(ctx, big); err != nil {
		t.Fatalf("Add: %v", err)
	}

	svc.diskFree = func(path string) (int64, error) {
		if path == big {
			return 500 << 30, nil
		}
		return 10 << 30, nil
	}

	rf, err := svc.PickForImport(ctx, 50<<30)
	if err != nil {
		t.Fatalf("PickForImport: %v", err)
	}
	if rf.Path != big {
		t.Errorf("picked %q, want %q", rf.Path, big)
	}

	if _, err := svc.PickForImport(ctx, 1<<50); !errors.Is(err, ErrNoUsableFolder) {
		t.Errorf("oversized requirement: err = %v, want ErrNoUsableFolder", err)
	}
}

func TestListMarksInaccessible(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	dir := t.TempDir()
	sub := filepath.Join(dir, "media")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Add(ctx, sub); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := os.Remove(sub); err != nil {
		t.Fatal(err)
	}

	folders, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("folders = %d, want 1", len(folders))
	}
	if folders[0].Accessible {
		t.Error("removed directory still reported accessible")
	}
}
