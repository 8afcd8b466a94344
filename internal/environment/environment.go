// Package environment holds the variant registry (C4): the mapping from
// recognised CPython type names to the addresses of their type objects
// inside a specific snapshot, persisted as a JSON sidecar file.
package environment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relistan/pymemtools/internal/snapshot"
)

// PyVersion selects which of the two supported CPython field layouts
// internal/pyobj decodes against. The registry carries this tag because
// struct layout, not just which types exist, differs between versions.
type PyVersion int

const (
	// PyVersionUnknown is the zero value. pyobj decoders treat every
	// version other than PyVersion314, this one included, as the 3.10
	// layout.
	PyVersionUnknown PyVersion = iota
	PyVersion310
	PyVersion314
)

func (v PyVersion) String() string {
	switch v {
	case PyVersion310:
		return "3.10"
	case PyVersion314:
		return "3.14"
	default:
		return "unknown"
	}
}

// Environment is the variant registry: the address of the metatype
// ("type", the base_type_object) and the addresses of every other
// recognised type object, keyed by the bare type name the external
// analysis-data.json type_objects surface uses (e.g. "int", "dict",
// "_asyncio.Task"). Population is the caller's responsibility — nothing
// in this package scans a snapshot to discover type objects.
type Environment struct {
	Version      PyVersion
	MetaTypeAddr snapshot.Address
	TypeAddrs    map[string]snapshot.Address
}

// New returns an empty registry for the given version.
func New(version PyVersion) *Environment {
	return &Environment{
		Version:   version,
		TypeAddrs: make(map[string]snapshot.Address),
	}
}

// GetType returns the address of the named type's type object. ok is
// false when the name was never registered, which is distinct from a
// registered type whose address happens to be null.
func (e *Environment) GetType(name string) (addr snapshot.Address, ok bool) {
	addr, ok = e.TypeAddrs[name]
	return addr, ok
}

// IsMetaType reports whether addr is the registry's base type object
// ("type" itself) — the root every other type's ob_type eventually
// resolves to.
func (e *Environment) IsMetaType(addr snapshot.Address) bool {
	return !addr.IsNull() && addr == e.MetaTypeAddr
}

// registryFile is the on-disk JSON shape, matching the sidecar format
// exactly: {"base_type_object": <int>, "type_objects": {"<name>": <int>}}.
// The version tag is not part of this wire format — it is supplied
// separately by whatever selected this snapshot in the first place (the
// sidecar has no notion of it), so Load/Save take or preserve it as a
// constructor argument rather than a JSON field.
type registryFile struct {
	BaseTypeObject uint64            `json:"base_type_object"`
	TypeObjects    map[string]uint64 `json:"type_objects"`
}

// Load reads the registry sidecar at path. A missing file is not an
// error — it yields an empty registry, since a snapshot may legitimately
// have no sidecar yet (§4.3: population happens externally, sometimes
// after the core has already started being used read-only).
func Load(path string, version PyVersion) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(version), nil
		}
		return nil, fmt.Errorf("environment: read %s: %v", path, err)
	}

	var rf registryFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("environment: parse %s: %v", path, err)
	}

	env := New(version)
	env.MetaTypeAddr = snapshot.Address(rf.BaseTypeObject)
	for name, addr := range rf.TypeObjects {
		env.TypeAddrs[name] = snapshot.Address(addr)
	}
	return env, nil
}

// Save writes the registry sidecar to path atomically: it writes to a
// temp file in the same directory and renames it into place, so a reader
// racing a writer (or a crash mid-write) never observes a partial file.
func Save(path string, env *Environment) error {
	rf := registryFile{
		BaseTypeObject: uint64(env.MetaTypeAddr),
		TypeObjects:    make(map[string]uint64, len(env.TypeAddrs)),
	}
	for name, addr := range env.TypeAddrs {
		rf.TypeObjects[name] = uint64(addr)
	}

	data, err := json.MarshalIndent(&rf, "", "  ")
	if err != nil {
		return fmt.Errorf("environment: marshal: %v", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".analysis-data-*.json.tmp")
	if err != nil {
		return fmt.Errorf("environment: create temp file: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("environment: write %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("environment: close %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("environment: rename into %s: %v", path, err)
	}
	return nil
}

// SidecarPath returns the analysis-data.json path for a snapshot at
// snapshotPath, matching §6's two naming conventions: a trailing
// "/analysis-data.json" for directory snapshots, a trailing
// ":analysis-data.json" for bundle (single-file) snapshots.
func SidecarPath(snapshotPath string, isDirectory bool) string {
	if isDirectory {
		return filepath.Join(snapshotPath, "analysis-data.json")
	}
	return snapshotPath + ":analysis-data.json"
}
