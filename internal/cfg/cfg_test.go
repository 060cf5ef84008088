package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesOnlyFieldsPresentInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "armb.json")
	if err := os.WriteFile(path, []byte(`{"listen_port": 9200, "compress": true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ListenPort != 9200 {
		t.Fatalf("ListenPort = %d, want 9200", got.ListenPort)
	}
	if !got.Compress {
		t.Fatal("Compress = false, want true")
	}
	if got.MsgTimeout != 10*time.Second {
		t.Fatalf("MsgTimeout = %v, want default 10s (untouched by the file)", got.MsgTimeout)
	}
}

func TestGetReflectsMostRecentSet(t *testing.T) {
	defer Set(Default())

	Set(Config{ListenPort: 4242})
	if Get().ListenPort != 4242 {
		t.Fatalf("Get().ListenPort = %d, want 4242", Get().ListenPort)
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
