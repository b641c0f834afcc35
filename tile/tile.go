// Package tile provides common tile interfaces and types.
package tile

import (
	"context"
	"fmt"
)

// ID represents tile coordinates in the XYZ scheme (Tiled web map).
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z < 32 && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Location represents the absolute location of tile data inside a tileset file.
type Location struct {
	Offset uint64
	Length uint64
}

// End returns the offset one past the last byte of the tile.
func (l Location) End() uint64 {
	return l.Offset + l.Length
}

type Locator interface {
	// Locate resolves the byte range of a single tile.
	// A missing tile is reported with found == false and a nil error.
	Locate(ctx context.Context, tileID ID) (location Location, found bool, err error)
}

type LocationVisitor interface {
	// VisitLocations visits locations of all tiles in the tileset.
	// Order of tiles is implementation-defined.
	VisitLocations(ctx context.Context, visitor func(ID, Location) error) error
}
