package index_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/eak1mov/tilerange/index"
	"github.com/eak1mov/tilerange/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadAll(t *testing.T) {
	items := []index.Item{
		index.ItemAt(tile.ID{X: 0, Y: 0, Z: 0}, tile.Location{Offset: 200, Length: 10}),
		index.ItemAt(tile.ID{X: 1, Y: 2, Z: 3}, tile.Location{Offset: 1 << 40, Length: 500}),
	}

	var buffer bytes.Buffer
	require.NoError(t, index.WriteAll(items, &buffer))
	assert.Equal(t, 2*24, buffer.Len())

	got, err := index.ReadAll(buffer.Bytes())
	require.NoError(t, err)
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("ReadAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAllTruncated(t *testing.T) {
	_, err := index.ReadAll(make([]byte, 30))
	assert.Error(t, err)
}

func TestItemAt(t *testing.T) {
	tileID := tile.ID{X: 5, Y: 6, Z: 7}
	item := index.ItemAt(tileID, tile.Location{Offset: 42, Length: 17})
	assert.Equal(t, tileID, item.TileID())
	assert.Equal(t, tile.Location{Offset: 42, Length: 17}, item.TileLocation())

	huge := index.ItemAt(tileID, tile.Location{Offset: 0, Length: math.MaxUint32 + 10})
	assert.Equal(t, uint32(math.MaxUint32), huge.Length)
}

func TestLocator(t *testing.T) {
	ctx := context.Background()
	items := []index.Item{
		index.ItemAt(tile.ID{X: 1, Y: 1, Z: 1}, tile.Location{Offset: 100, Length: 5}),
		index.ItemAt(tile.ID{X: 0, Y: 0, Z: 0}, tile.Location{Offset: 90, Length: 10}),
	}
	locator := index.NewLocator(items)
	assert.Equal(t, 2, locator.Len())

	location, found, err := locator.Locate(ctx, tile.ID{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tile.Location{Offset: 100, Length: 5}, location)

	_, found, err = locator.Locate(ctx, tile.ID{X: 0, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.False(t, found)

	var visited []tile.ID
	for tileID := range tile.IterLocations(ctx, locator) {
		visited = append(visited, tileID)
	}
	assert.Equal(t, []tile.ID{{X: 1, Y: 1, Z: 1}, {X: 0, Y: 0, Z: 0}}, visited)
}

func TestLocatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	locator := index.NewLocator(nil)
	_, _, err := locator.Locate(ctx, tile.ID{})
	assert.ErrorIs(t, err, context.Canceled)
}
