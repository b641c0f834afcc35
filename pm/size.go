package pm

import (
	"context"
	"errors"
	"fmt"

	"github.com/eak1mov/tilerange/pm/spec"
)

// ErrTileDataLengthUnknown reports a header without the tile data length.
var ErrTileDataLengthUnknown = errors.New("tile data length not recorded in header")

// HeaderReader gives access to a memoized archive header.
type HeaderReader interface {
	Header(ctx context.Context) (*spec.Header, error)
}

// ArchiveSize returns the size of the archive up to the end of its tile data.
// It does not scan the directories when the header lacks the tile data length.
func ArchiveSize(ctx context.Context, archive HeaderReader) (uint64, error) {
	header, err := archive.Header(ctx)
	if err != nil {
		return 0, err
	}
	if !header.TileDataLengthKnown() {
		return 0, ErrTileDataLengthUnknown
	}
	return header.TileDataOffset + header.TileDataLength, nil
}

// Size returns the archive size recorded in its header.
func (a *Archive) Size(ctx context.Context) (uint64, error) {
	size, err := ArchiveSize(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", a.id, err)
	}
	return size, nil
}
