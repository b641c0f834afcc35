package pm

import (
	"context"
	"fmt"

	"github.com/eak1mov/tilerange/pm/spec"
	"github.com/eak1mov/tilerange/tile"
)

func (a *Archive) HeaderMetadata(ctx context.Context) (HeaderMetadata, error) {
	header, err := a.Header(ctx)
	if err != nil {
		return HeaderMetadata{}, err
	}
	result := HeaderMetadata{}
	result.CopyFromHeader(header)
	return result, nil
}

// ReadMetadata returns the raw (possibly compressed) JSON metadata section.
func (a *Archive) ReadMetadata(ctx context.Context) ([]byte, error) {
	header, err := a.Header(ctx)
	if err != nil {
		return nil, err
	}
	if header.MetadataLength == 0 {
		return []byte{}, nil
	}
	return a.source.ReadRange(ctx, header.MetadataOffset, header.MetadataLength)
}

// ReadTile returns the tile data, or an empty slice if the tile does not exist.
func (a *Archive) ReadTile(ctx context.Context, tileID tile.ID) ([]byte, error) {
	location, found, err := a.Locate(ctx, tileID)
	if err != nil {
		return nil, err
	}
	if !found {
		return make([]byte, 0), nil
	}
	return a.source.ReadRange(ctx, location.Offset, location.Length)
}

// VisitLocations walks all directories in tile code order.
// Runs are expanded, so the visitor is called once per addressed tile.
func (a *Archive) VisitLocations(ctx context.Context, visitor func(tile.ID, tile.Location) error) error {
	header, err := a.Header(ctx)
	if err != nil {
		return err
	}

	var traverse func(uint64, uint64, int) error
	traverse = func(dirOffset, dirLength uint64, depth int) error {
		if depth >= MaxDirectoryDepth {
			return fmt.Errorf("%v: %w", a.id, ErrMaxDepthExceeded)
		}
		dirEntries, err := a.Directory(ctx, dirOffset, dirLength)
		if err != nil {
			return err
		}
		for _, entry := range dirEntries {
			if entry.RunLength == 0 {
				err := traverse(header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length), depth+1)
				if err != nil {
					return err
				}
				continue
			}
			location := tile.Location{
				Offset: header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}
			for i := range uint64(entry.RunLength) {
				if err := visitor(spec.DecodeTileID(entry.TileCode+i), location); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(header.RootOffset, header.RootLength, 0)
}

func (a *Archive) VisitTiles(ctx context.Context, visitor func(tile.ID, []byte) error) error {
	return a.VisitLocations(ctx, func(tileID tile.ID, location tile.Location) error {
		tileData, err := a.source.ReadRange(ctx, location.Offset, location.Length)
		if err != nil {
			return err
		}
		return visitor(tileID, tileData)
	})
}
