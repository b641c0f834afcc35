package pm_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eak1mov/tilerange/internal"
	"github.com/eak1mov/tilerange/pm"
	"github.com/eak1mov/tilerange/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource serves an archive from memory and counts reads.
type memorySource struct {
	data  []byte
	reads atomic.Int64
}

func (s *memorySource) ReadRange(_ context.Context, offset, length uint64) ([]byte, error) {
	s.reads.Add(1)
	if offset+length > uint64(len(s.data)) {
		return nil, io.ErrUnexpectedEOF
	}
	return bytes.Clone(s.data[offset : offset+length]), nil
}

func testCase(t *testing.T, name string) map[tile.ID][]byte {
	t.Helper()
	for _, tc := range internal.TestCases() {
		if tc.Name == name {
			return tc.Tiles
		}
	}
	t.Fatalf("no test case %q", name)
	return nil
}

func memoryArchive(t *testing.T, name string) (map[tile.ID][]byte, *memorySource) {
	t.Helper()
	tiles := testCase(t, name)
	data, err := os.ReadFile(writeArchive(t, tiles))
	require.NoError(t, err)
	return tiles, &memorySource{data: data}
}

func TestArchiveHeaderMemoized(t *testing.T) {
	_, source := memoryArchive(t, "full5")
	archive := pm.NewArchive(source)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			header, err := archive.Header(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, uint8(5), header.MaxZoom)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), source.reads.Load())
}

func TestArchiveHeaderFailureRemembered(t *testing.T) {
	var reads atomic.Int64
	errUnavailable := errors.New("unavailable")
	archive := pm.NewArchive(pm.SourceFunc(func(context.Context, uint64, uint64) ([]byte, error) {
		reads.Add(1)
		return nil, errUnavailable
	}))

	for range 3 {
		_, err := archive.Header(context.Background())
		require.ErrorIs(t, err, errUnavailable)
	}
	require.Equal(t, int64(1), reads.Load())
}

func TestArchiveHeaderCancelledNotRemembered(t *testing.T) {
	_, source := memoryArchive(t, "single")
	archive := pm.NewArchive(pm.SourceFunc(func(ctx context.Context, offset, length uint64) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return source.ReadRange(ctx, offset, length)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := archive.Header(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = archive.Header(context.Background())
	require.NoError(t, err)
}

func TestArchiveHeaderWaiterDeadline(t *testing.T) {
	_, source := memoryArchive(t, "single")
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	archive := pm.NewArchive(pm.SourceFunc(func(ctx context.Context, offset, length uint64) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return source.ReadRange(ctx, offset, length)
	}))

	done := make(chan error, 1)
	go func() {
		_, err := archive.Header(context.Background())
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := archive.Header(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	_, err = archive.Header(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), source.reads.Load())
}

func TestArchiveHeaderOutlivesCancelledCaller(t *testing.T) {
	_, source := memoryArchive(t, "single")
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	archive := pm.NewArchive(pm.SourceFunc(func(ctx context.Context, offset, length uint64) ([]byte, error) {
		once.Do(func() { close(started) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		return source.ReadRange(ctx, offset, length)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := archive.Header(ctx)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := archive.Header(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	require.Equal(t, int64(1), source.reads.Load())
}

// stringSource is a value-type source, so it has no identity of its own.
type stringSource string

func (s stringSource) ReadRange(_ context.Context, offset, length uint64) ([]byte, error) {
	if offset+length > uint64(len(s)) {
		return nil, io.ErrUnexpectedEOF
	}
	return []byte(s[offset : offset+length]), nil
}

func TestArchiveDefaultIDs(t *testing.T) {
	tiles1, source1 := memoryArchive(t, "full5")
	tiles2, source2 := memoryArchive(t, "sparse")

	same := stringSource(source1.data)
	assert.NotEqual(t, pm.NewArchive(same).ID(), pm.NewArchive(same).ID())

	cache := pm.NewLRUCache(16)
	archive1 := pm.NewArchive(stringSource(source1.data), pm.WithDirectoryCache(cache))
	archive2 := pm.NewArchive(stringSource(source2.data), pm.WithDirectoryCache(cache))
	require.NotEqual(t, archive1.ID(), archive2.ID())

	for tileID, tileData := range tiles1 {
		got, err := archive1.ReadTile(context.Background(), tileID)
		require.NoError(t, err)
		require.Equal(t, tileData, got)
	}
	for tileID, tileData := range tiles2 {
		got, err := archive2.ReadTile(context.Background(), tileID)
		require.NoError(t, err)
		require.Equal(t, tileData, got)
	}
}

func TestArchiveInvalidHeader(t *testing.T) {
	archive := pm.NewArchive(&memorySource{data: bytes.Repeat([]byte{1}, 200)})
	_, _, err := archive.Locate(context.Background(), tile.ID{})
	require.Error(t, err)
}

func TestArchiveDirectoryCache(t *testing.T) {
	tiles, source := memoryArchive(t, "large")
	archive := pm.NewArchive(source, pm.WithDirectoryCache(pm.NewLRUCache(16)))

	var tileID tile.ID
	for tileID = range tiles {
		break
	}

	_, found, err := archive.Locate(context.Background(), tileID)
	require.NoError(t, err)
	require.True(t, found)
	// header, root, leaf
	require.Equal(t, int64(3), source.reads.Load())

	_, found, err = archive.Locate(context.Background(), tileID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(3), source.reads.Load())
}

func TestArchiveNoCache(t *testing.T) {
	_, source := memoryArchive(t, "full5")
	archive := pm.NewArchive(source, pm.WithDirectoryCache(pm.NoCache))

	for range 3 {
		_, found, err := archive.Locate(context.Background(), tile.ID{X: 1, Y: 2, Z: 3})
		require.NoError(t, err)
		require.True(t, found)
	}
	require.Equal(t, int64(4), source.reads.Load())
}

func TestArchiveSharedCache(t *testing.T) {
	tiles1, source1 := memoryArchive(t, "full5")
	tiles2, source2 := memoryArchive(t, "sparse")
	cache := pm.NewLRUCache(16)
	archive1 := pm.NewArchive(source1, pm.WithID("one"), pm.WithDirectoryCache(cache))
	archive2 := pm.NewArchive(source2, pm.WithID("two"), pm.WithDirectoryCache(cache))

	for tileID, tileData := range tiles1 {
		got, err := archive1.ReadTile(context.Background(), tileID)
		require.NoError(t, err)
		require.Equal(t, tileData, got)
	}
	for tileID, tileData := range tiles2 {
		got, err := archive2.ReadTile(context.Background(), tileID)
		require.NoError(t, err)
		require.Equal(t, tileData, got)
	}
	require.GreaterOrEqual(t, cache.Len(), 2)
}

func TestArchiveOverHTTP(t *testing.T) {
	tiles, source := memoryArchive(t, "full5")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "tiles.pmtiles", time.Time{}, bytes.NewReader(source.data))
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	archive, err := pm.Open(ctx, server.URL+"/tiles.pmtiles")
	require.NoError(t, err)
	defer archive.Close()
	require.Equal(t, server.URL+"/tiles.pmtiles", archive.ID())

	for tileID, tileData := range tiles {
		location, found, err := archive.Locate(ctx, tileID)
		require.NoError(t, err)
		require.True(t, found, "%v", tileID)
		require.Equal(t, tileData, source.data[location.Offset:location.End()], "%v", tileID)
	}

	_, found, err := archive.Locate(ctx, tile.ID{X: 0, Y: 0, Z: 6})
	require.NoError(t, err)
	require.False(t, found)

	size, err := archive.Size(ctx)
	require.NoError(t, err)
	require.LessOrEqual(t, size, uint64(len(source.data)))
}

func TestArchiveReadMissingTile(t *testing.T) {
	_, source := memoryArchive(t, "sparse")
	archive := pm.NewArchive(source)

	for x := range uint32(20) {
		tileID := tile.ID{X: x, Y: 4095 - x, Z: 12}
		tileData, err := archive.ReadTile(context.Background(), tileID)
		require.NoError(t, err)
		if len(tileData) != 0 {
			require.Equal(t, fmt.Sprintf("tile-%d-%d-%d", tileID.Z, tileID.X, tileID.Y), string(tileData))
		}
	}
}
