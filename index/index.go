// Package index provides utilities for custom index formats.
package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/eak1mov/tilerange/tile"
)

// Item represents a single record in the index, mapping tile coordinates (X, Y, Z)
// to its location (Offset, Length) in the tile storage file.
// It is designed to be easily portable to other languages and utilities.
type Item struct {
	X      uint32
	Y      uint32
	Z      uint32
	Length uint32
	Offset uint64
}

// ItemAt builds an index record for the tile. Lengths above 4 GiB are truncated.
func ItemAt(tileID tile.ID, location tile.Location) Item {
	return Item{
		X:      tileID.X,
		Y:      tileID.Y,
		Z:      tileID.Z,
		Length: uint32(min(location.Length, math.MaxUint32)),
		Offset: location.Offset,
	}
}

func (i Item) TileID() tile.ID {
	return tile.ID{X: i.X, Y: i.Y, Z: i.Z}
}

func (i Item) TileLocation() tile.Location {
	return tile.Location{Offset: i.Offset, Length: uint64(i.Length)}
}

func WriteAll(items []Item, writer io.Writer) error {
	return binary.Write(writer, binary.LittleEndian, items)
}

func ReadAll(indexData []byte) ([]Item, error) {
	itemSize := binary.Size(Item{})
	if len(indexData)%itemSize != 0 {
		return nil, fmt.Errorf("index length %d is not a multiple of %d", len(indexData), itemSize)
	}
	count := len(indexData) / itemSize
	items := make([]Item, count)

	err := binary.Read(bytes.NewReader(indexData), binary.LittleEndian, items)
	if err != nil {
		return nil, err
	}

	return items, nil
}

// Locator answers tile lookups from an index loaded into memory.
type Locator struct {
	items     []Item
	locations map[tile.ID]tile.Location
}

func NewLocator(items []Item) *Locator {
	locations := make(map[tile.ID]tile.Location, len(items))
	for _, item := range items {
		locations[item.TileID()] = item.TileLocation()
	}
	return &Locator{items: items, locations: locations}
}

func (l *Locator) Len() int {
	return len(l.locations)
}

func (l *Locator) Locate(ctx context.Context, tileID tile.ID) (tile.Location, bool, error) {
	if err := ctx.Err(); err != nil {
		return tile.Location{}, false, err
	}
	location, ok := l.locations[tileID]
	return location, ok, nil
}

// VisitLocations visits items in index order.
func (l *Locator) VisitLocations(ctx context.Context, visitor func(tile.ID, tile.Location) error) error {
	for _, item := range l.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visitor(item.TileID(), item.TileLocation()); err != nil {
			return err
		}
	}
	return nil
}
