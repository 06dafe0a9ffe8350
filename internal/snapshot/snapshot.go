// Package snapshot serializes the scan's layout decisions so the later
// compilation phase can load the pre-agreed vtable and dictionary shapes
// without rescanning the program.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"sort"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/715d/aotscan/internal/layout"
	"github.com/715d/aotscan/internal/scan"
)

// FormatVersion guards against loading artifacts written by an
// incompatible scanner.
const FormatVersion = 1

// Snapshot is the persistent form of one scan result.
type Snapshot struct {
	Version      uint32       `msgpack:"version"`
	Methods      []string     `msgpack:"methods"`
	VTables      []VTable     `msgpack:"vtables"`
	Dictionaries []Dictionary `msgpack:"dictionaries"`
}

// VTable is the persisted dispatch slot list of one type.
type VTable struct {
	Type  string `msgpack:"type"`
	Slots []Slot `msgpack:"slots"`
}

// Slot is one persisted dispatch slot.
type Slot struct {
	Method string `msgpack:"method"`
	Index  uint32 `msgpack:"index"`
}

// Dictionary is the persisted lookup-entry list of one instantiation.
type Dictionary struct {
	Owner   string  `msgpack:"owner"`
	Entries []Entry `msgpack:"entries"`
}

// Entry is one persisted dictionary lookup entry.
type Entry struct {
	Kind   uint8  `msgpack:"kind"`
	Type   string `msgpack:"type,omitempty"`
	Method string `msgpack:"method,omitempty"`
}

// Build captures the reachable method set and every precomputed layout.
// Entries are sorted by key so the artifact is byte-stable across runs.
func Build(res *scan.Result, vtables *layout.VTableProvider, dicts *layout.DictionaryProvider) (*Snapshot, error) {
	snap := &Snapshot{Version: FormatVersion}
	snap.Methods = append(snap.Methods, res.MethodNames()...)
	sort.Strings(snap.Methods)

	names := res.Names()
	seenTypes := make(map[string]struct{})
	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeVTableSlot {
			continue
		}
		key := names.TypeName(n.Type)
		if _, ok := seenTypes[key]; ok {
			continue
		}
		seenTypes[key] = struct{}{}

		slice, err := vtables.Slice(n.Type)
		if err != nil {
			return nil, fmt.Errorf("snapshot vtable %s: %w", key, err)
		}
		vt := VTable{Type: key}
		for _, slot := range slice.Slots {
			idx, err := safecast.Convert[uint32](slot.Index)
			if err != nil {
				return nil, fmt.Errorf("snapshot vtable %s: slot index: %w", key, err)
			}
			vt.Slots = append(vt.Slots, Slot{Method: slot.Method.Id(), Index: idx})
		}
		snap.VTables = append(snap.VTables, vt)
	}
	sort.Slice(snap.VTables, func(i, j int) bool { return snap.VTables[i].Type < snap.VTables[j].Type })

	seenOwners := make(map[string]struct{})
	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeDictEntry {
			continue
		}
		key := names.RefKey(n.Owner)
		if _, ok := seenOwners[key]; ok {
			continue
		}
		seenOwners[key] = struct{}{}

		dict, err := dicts.Layout(n.Owner)
		if err != nil {
			return nil, fmt.Errorf("snapshot dictionary %s: %w", key, err)
		}
		rec := Dictionary{Owner: key}
		for _, entry := range dict.Entries {
			e := Entry{Kind: uint8(entry.Kind)}
			if entry.Type != nil {
				e.Type = names.TypeName(entry.Type)
			}
			if entry.Method != nil {
				e.Method = entry.Method.Id()
			}
			rec.Entries = append(rec.Entries, e)
		}
		snap.Dictionaries = append(snap.Dictionaries, rec)
	}
	sort.Slice(snap.Dictionaries, func(i, j int) bool { return snap.Dictionaries[i].Owner < snap.Dictionaries[j].Owner })

	return snap, nil
}

// Encode writes the snapshot in msgpack form.
func (s *Snapshot) Encode(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot and validates its format version.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot format version %d, want %d", s.Version, FormatVersion)
	}
	return &s, nil
}

// WriteFile persists the snapshot to path.
func (s *Snapshot) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if err := s.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a snapshot from path.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
