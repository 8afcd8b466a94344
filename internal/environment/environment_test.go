package environment

import (
	"path/filepath"
	"testing"

	"github.com/relistan/pymemtools/internal/snapshot"
)

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	env, err := Load(filepath.Join(t.TempDir(), "nope.json"), PyVersion310)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(env.TypeAddrs) != 0 {
		t.Fatalf("expected empty registry, got %d entries", len(env.TypeAddrs))
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis-data.json")

	env := New(PyVersion314)
	env.MetaTypeAddr = 0xdeadbeef
	env.TypeAddrs["int"] = 0x1000
	env.TypeAddrs["dict"] = 0x2000

	if err := Save(path, env); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, PyVersion314)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MetaTypeAddr != env.MetaTypeAddr {
		t.Fatalf("MetaTypeAddr = %s, want %s", loaded.MetaTypeAddr, env.MetaTypeAddr)
	}
	for name, addr := range env.TypeAddrs {
		got, ok := loaded.GetType(name)
		if !ok || got != addr {
			t.Fatalf("GetType(%s) = %s, %v; want %s, true", name, got, ok, addr)
		}
	}
}

func TestGetTypeDistinguishesUnregisteredFromNull(t *testing.T) {
	env := New(PyVersion310)
	env.TypeAddrs["object"] = snapshot.Null

	addr, ok := env.GetType("object")
	if !ok || addr != snapshot.Null {
		t.Fatalf("expected registered-but-null, got %s, %v", addr, ok)
	}

	_, ok = env.GetType("nonexistent")
	if ok {
		t.Fatal("expected unregistered type to report ok=false")
	}
}
