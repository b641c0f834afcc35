package spec_test

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/eak1mov/tilerange/internal"
	"github.com/eak1mov/tilerange/pm/spec"
	gcmp "github.com/google/go-cmp/cmp"
)

func TestDirectorySerializer(t *testing.T) {
	for _, tc := range internal.TestCases() {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			entries := make([]spec.Entry, 0)
			offset := uint64(0)
			for _, tileID := range slices.Collect(maps.Keys(tc.Tiles)) {
				length := uint32(len(tc.Tiles[tileID]))
				entries = append(entries, spec.Entry{
					TileCode:  spec.EncodeTileID(tileID),
					Offset:    offset,
					Length:    length,
					RunLength: 1,
				})
				offset += uint64(length)
			}

			slices.SortFunc(entries, func(a, b spec.Entry) int {
				return cmp.Compare(a.TileCode, b.TileCode)
			})

			deserialized, err := spec.DeserializeDirectory(spec.SerializeDirectory(entries))
			if err != nil {
				t.Errorf("DeserializeDirectory failed: %v", err)
			}
			if !gcmp.Equal(entries, deserialized) {
				t.Error("DeserializeDirectory(SerializeDirectory(input)) != input")
			}
		})
	}
}

func TestDeserializeDirectoryErrors(t *testing.T) {
	for _, tc := range []struct {
		Name string
		Data []byte
	}{
		{Name: "Empty", Data: []byte{}},
		{Name: "TooManyEntries", Data: []byte{0xff, 0x01, 0x00, 0x00}},
		{Name: "Truncated", Data: []byte{0x02, 0x05, 0x01, 0x01, 0x00, 0x00, 0x10, 0x10}},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := spec.DeserializeDirectory(tc.Data)
			if !errors.Is(err, spec.ErrInvalidDirectory) {
				t.Errorf("DeserializeDirectory error = %v, want ErrInvalidDirectory", err)
			}
		})
	}
}

func TestCompactEntries(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 1, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 2, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 3, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 5, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 6, Offset: 10, Length: 7, RunLength: 1},
	}
	want := []spec.Entry{
		{TileCode: 1, Offset: 0, Length: 10, RunLength: 3},
		{TileCode: 5, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 6, Offset: 10, Length: 7, RunLength: 1},
	}
	if diff := gcmp.Diff(want, spec.CompactEntries(entries)); diff != "" {
		t.Errorf("CompactEntries mismatch (-want+got):\n%v", diff)
	}
}

func TestFindEntry(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 5, Offset: 1000, Length: 256, RunLength: 3},
		{TileCode: 10, Offset: 2000, Length: 50, RunLength: 0},
		{TileCode: 20, Offset: 3000, Length: 64, RunLength: 1},
		{TileCode: 30, Offset: 4000, Length: 70, RunLength: 0},
	}
	for _, tc := range []struct {
		Name     string
		TileCode uint64
		Want     spec.Entry
		Found    bool
	}{
		{Name: "BeforeFirst", TileCode: 4, Found: false},
		{Name: "Zero", TileCode: 0, Found: false},
		{Name: "RunStart", TileCode: 5, Want: entries[0], Found: true},
		{Name: "RunMiddle", TileCode: 6, Want: entries[0], Found: true},
		{Name: "RunLast", TileCode: 7, Want: entries[0], Found: true},
		{Name: "PastRun", TileCode: 8, Found: false},
		{Name: "LeafExact", TileCode: 10, Want: entries[1], Found: true},
		{Name: "LeafCovers", TileCode: 19, Want: entries[1], Found: true},
		{Name: "SingleTile", TileCode: 20, Want: entries[2], Found: true},
		{Name: "PastSingleTile", TileCode: 21, Found: false},
		{Name: "LastLeaf", TileCode: 1 << 40, Want: entries[3], Found: true},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			got, found := spec.FindEntry(entries, tc.TileCode)
			if found != tc.Found {
				t.Fatalf("FindEntry(%v) found = %v, want = %v", tc.TileCode, found, tc.Found)
			}
			if diff := gcmp.Diff(tc.Want, got); diff != "" {
				t.Errorf("FindEntry(%v) mismatch (-want+got):\n%v", tc.TileCode, diff)
			}
		})
	}

	if _, found := spec.FindEntry(nil, 0); found {
		t.Error("FindEntry(empty directory) found an entry")
	}
}

// Every code inside a run resolves to the run's entry, every code outside
// all runs resolves to nothing.
func TestFindEntryRuns(t *testing.T) {
	entries := []spec.Entry{}
	covered := make(map[uint64]spec.Entry)
	code := uint64(3)
	for i := range 200 {
		entry := spec.Entry{
			TileCode:  code,
			Offset:    uint64(i) * 100,
			Length:    uint32(i%7 + 1),
			RunLength: uint32(i%5 + 1),
		}
		entries = append(entries, entry)
		for c := entry.TileCode; c < entry.TileCode+uint64(entry.RunLength); c++ {
			covered[c] = entry
		}
		code += uint64(entry.RunLength) + uint64(i%3)
	}

	for c := range code + 10 {
		got, found := spec.FindEntry(entries, c)
		want, wantFound := covered[c]
		if found != wantFound || got != want {
			t.Fatalf("FindEntry(%v) = %v, %v, want = %v, %v", c, got, found, want, wantFound)
		}
	}
}

func TestSerializeAllLeaves(t *testing.T) {
	entries := make([]spec.Entry, 0, 50000)
	for i := range uint64(50000) {
		entries = append(entries, spec.Entry{
			TileCode:  i * 3,
			Offset:    i * 1000,
			Length:    uint32(100 + i%900),
			RunLength: 1,
		})
	}

	rootBytes, leavesBytes := spec.SerializeAll(entries, spec.CompressionGzip)
	if len(rootBytes) > spec.RootDirMaxLength {
		t.Fatalf("root directory is %v bytes, want <= %v", len(rootBytes), spec.RootDirMaxLength)
	}
	if len(leavesBytes) == 0 {
		t.Fatal("expected leaf directories")
	}

	rootData, err := spec.Decompress(rootBytes, spec.CompressionGzip)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	rootEntries, err := spec.DeserializeDirectory(rootData)
	if err != nil {
		t.Fatalf("DeserializeDirectory failed: %v", err)
	}

	collected := make([]spec.Entry, 0, len(entries))
	for _, leaf := range rootEntries {
		if leaf.RunLength != 0 {
			t.Fatalf("root entry %v is not a leaf pointer", leaf)
		}
		leafCompressed := leavesBytes[leaf.Offset : leaf.Offset+uint64(leaf.Length)]
		leafData, err := spec.Decompress(leafCompressed, spec.CompressionGzip)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		leafEntries, err := spec.DeserializeDirectory(leafData)
		if err != nil {
			t.Fatalf("DeserializeDirectory failed: %v", err)
		}
		if leafEntries[0].TileCode != leaf.TileCode {
			t.Fatalf("leaf starts at %v, root entry says %v", leafEntries[0].TileCode, leaf.TileCode)
		}
		collected = append(collected, leafEntries...)
	}
	if !gcmp.Equal(entries, collected) {
		t.Error("leaf directories do not reproduce the input entries")
	}
}
