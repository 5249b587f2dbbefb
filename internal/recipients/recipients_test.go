package recipients

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeBook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	return path
}

func TestLoadAndResolve(t *testing.T) {
	path := writeBook(t, `{
		"store-1": ["downtown@example.com"],
		"default": ["ops@example.com", "oncall@example.com"]
	}`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	t.Run("explicit entry", func(t *testing.T) {
		got := b.Resolve("store-1")
		if !reflect.DeepEqual(got, []string{"downtown@example.com"}) {
			t.Fatalf("Resolve = %v", got)
		}
	})

	t.Run("falls back to default", func(t *testing.T) {
		got := b.Resolve("store-9")
		if len(got) != 2 || got[0] != "ops@example.com" {
			t.Fatalf("Resolve = %v", got)
		}
	})

	t.Run("empty entry falls back to default", func(t *testing.T) {
		path := writeBook(t, `{"store-1": [], "default": ["ops@example.com"]}`)
		b, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		got := b.Resolve("store-1")
		if len(got) != 1 || got[0] != "ops@example.com" {
			t.Fatalf("Resolve = %v", got)
		}
	})
}

func TestLoadMissingFileDisablesNotifications(t *testing.T) {
	b, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := b.Resolve("any"); got != nil {
		t.Fatalf("Resolve on empty book = %v", got)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := b.Resolve("any"); got != nil {
		t.Fatalf("Resolve = %v", got)
	}
	if err := b.Reload(); err != nil {
		t.Fatalf("Reload with no path: %v", err)
	}
}

func TestReloadSwapsMap(t *testing.T) {
	path := writeBook(t, `{"default": ["old@example.com"]}`)
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"default": ["new@example.com"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := b.Resolve("any"); len(got) != 1 || got[0] != "new@example.com" {
		t.Fatalf("Resolve after reload = %v", got)
	}
}

func TestReloadKeepsOldMapOnParseError(t *testing.T) {
	path := writeBook(t, `{"default": ["ops@example.com"]}`)
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.Reload(); err == nil {
		t.Fatal("expected parse error")
	}
	if got := b.Resolve("any"); len(got) != 1 || got[0] != "ops@example.com" {
		t.Fatalf("previous map lost on failed reload: %v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	path := writeBook(t, `{"default": ["ops@example.com"]}`)
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := b.Snapshot()
	snap["default"][0] = "mutated@example.com"
	if got := b.Resolve("any"); got[0] != "ops@example.com" {
		t.Fatal("Snapshot must not alias the live map")
	}
}
