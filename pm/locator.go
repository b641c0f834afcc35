package pm

import (
	"context"
	"errors"
	"fmt"

	"github.com/eak1mov/tilerange/pm/spec"
	"github.com/eak1mov/tilerange/tile"
)

// MaxDirectoryDepth bounds the number of directories read per lookup:
// the root plus up to three levels of leaves.
const MaxDirectoryDepth = 4

// ErrMaxDepthExceeded reports a directory tree deeper than MaxDirectoryDepth.
// It means the archive is malformed, retrying will not help.
var ErrMaxDepthExceeded = errors.New("maximum directory depth exceeded")

// Locate resolves the byte range of a tile inside the archive.
//
// Tiles outside the archive zoom range, invalid coordinates and tiles absent
// from the directories are reported with found == false and a nil error.
func Locate(ctx context.Context, archive DirectoryReader, tileID tile.ID) (tile.Location, bool, error) {
	header, err := archive.Header(ctx)
	if err != nil {
		return tile.Location{}, false, err
	}

	if !tileID.Valid() || !header.ZoomInRange(tileID.Z) {
		return tile.Location{}, false, nil
	}

	tileCode := spec.EncodeTileID(tileID)
	dirOffset := header.RootOffset
	dirLength := header.RootLength

	for range MaxDirectoryDepth {
		dirEntries, err := archive.Directory(ctx, dirOffset, dirLength)
		if err != nil {
			return tile.Location{}, false, err
		}
		entry, found := spec.FindEntry(dirEntries, tileCode)
		if !found {
			return tile.Location{}, false, nil
		}
		if entry.RunLength > 0 {
			return tile.Location{
				Offset: header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}, true, nil
		}
		dirOffset = header.LeafDirectoryOffset + entry.Offset
		dirLength = uint64(entry.Length)
	}

	return tile.Location{}, false, fmt.Errorf("locate %v: %w", tileID, ErrMaxDepthExceeded)
}

// Locate implements tile.Locator.
func (a *Archive) Locate(ctx context.Context, tileID tile.ID) (tile.Location, bool, error) {
	location, found, err := Locate(ctx, a, tileID)
	if err != nil {
		return tile.Location{}, false, fmt.Errorf("%v: %w", a.id, err)
	}
	return location, found, nil
}
