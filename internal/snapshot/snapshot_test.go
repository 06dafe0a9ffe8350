package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Version: FormatVersion,
		Methods: []string{
			"(*example.com/shapes.Circle).Area",
			"example.com/shapes.main",
		},
		VTables: []VTable{
			{Type: "*example.com/shapes.Circle", Slots: []Slot{{Method: "Area", Index: 0}}},
		},
		Dictionaries: []Dictionary{
			{Owner: "method:(*example.com/boxes.Box[int]).Get", Entries: []Entry{{Kind: 1, Type: "int"}}},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	var buf bytes.Buffer
	require.NoError(t, snap.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestSnapshotEncodingIsStable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, sampleSnapshot().Encode(&a))
	require.NoError(t, sampleSnapshot().Encode(&b))
	require.Equal(t, a.Bytes(), b.Bytes())
}

func TestSnapshotRejectsVersionMismatch(t *testing.T) {
	snap := sampleSnapshot()
	snap.Version = FormatVersion + 1

	var buf bytes.Buffer
	require.NoError(t, snap.Encode(&buf))

	_, err := Decode(&buf)
	require.ErrorContains(t, err, "format version")
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.bin")

	snap := sampleSnapshot()
	require.NoError(t, snap.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}
