// Package pm reads tile locations and tiles from PMTiles v3 archives.
//
// An Archive fetches the header once and walks the directory tree on demand,
// reading only the byte ranges it needs from a Source. Directories pass
// through an injected DirectoryCache.
package pm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/tilerange/httprange"
	"github.com/eak1mov/tilerange/pm/spec"
	"golang.org/x/sync/singleflight"
)

var archiveSeq atomic.Uint64

// DirectoryReader is the access an archive walk needs: a memoized header
// and decoded directories by byte range.
type DirectoryReader interface {
	Header(ctx context.Context) (*spec.Header, error)
	Directory(ctx context.Context, offset, length uint64) ([]spec.Entry, error)
}

type Archive struct {
	id     string
	source Source
	cache  DirectoryCache
	logger *slog.Logger

	headerGroup singleflight.Group
	headerMu    sync.Mutex
	header      *spec.Header
	headerErr   error
}

type archiveConfig struct {
	ID     string
	Cache  DirectoryCache
	Logger *slog.Logger
}

type ArchiveOption func(*archiveConfig)

// WithID sets the archive identity used in directory cache keys and logs.
// Archives sharing a cache must have distinct IDs. Without it every archive
// gets a process-unique ID.
func WithID(id string) ArchiveOption {
	return func(c *archiveConfig) { c.ID = id }
}

// WithDirectoryCache replaces the default per-archive LRU cache.
func WithDirectoryCache(cache DirectoryCache) ArchiveOption {
	return func(c *archiveConfig) { c.Cache = cache }
}

func WithLogger(logger *slog.Logger) ArchiveOption {
	return func(c *archiveConfig) { c.Logger = logger }
}

// NewArchive creates an Archive reading from source. Nothing is fetched
// until the first call that needs the header.
func NewArchive(source Source, opts ...ArchiveOption) *Archive {
	config := archiveConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.ID == "" {
		config.ID = fmt.Sprintf("archive-%d", archiveSeq.Add(1))
	}
	if config.Cache == nil {
		config.Cache = NewLRUCache(DefaultCacheSize)
	}
	return &Archive{
		id:     config.ID,
		source: source,
		cache:  config.Cache,
		logger: config.Logger,
	}
}

// Open opens a local file or, for http(s) URLs, a remote archive read with
// range requests. The name is used as the archive ID unless WithID is given.
func Open(ctx context.Context, name string, opts ...ArchiveOption) (*Archive, error) {
	var source Source
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		httpSource, err := httprange.NewSource(ctx, name)
		if err != nil {
			return nil, err
		}
		source = httpSource
	} else {
		fileSource, err := OpenFile(name)
		if err != nil {
			return nil, err
		}
		source = fileSource
	}
	return NewArchive(source, append([]ArchiveOption{WithID(name)}, opts...)...), nil
}

func (a *Archive) ID() string {
	return a.id
}

// Close closes the underlying source if it holds resources.
func (a *Archive) Close() error {
	if closer, ok := a.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Header returns the archive header, reading it on the first call.
// Concurrent first calls share one read, which is not tied to any caller's
// context; each caller stops waiting when its own context is done.
// A failed read is remembered and returned by later calls.
func (a *Archive) Header(ctx context.Context) (*spec.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if header, done, err := a.memoizedHeader(); done {
		return header, err
	}

	resultCh := a.headerGroup.DoChan("header", func() (any, error) {
		if header, done, err := a.memoizedHeader(); done {
			return header, err
		}
		header, err := a.readHeader(context.WithoutCancel(ctx))

		a.headerMu.Lock()
		defer a.headerMu.Unlock()
		a.header, a.headerErr = header, err
		return header, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*spec.Header), nil
	}
}

func (a *Archive) memoizedHeader() (*spec.Header, bool, error) {
	a.headerMu.Lock()
	defer a.headerMu.Unlock()
	return a.header, a.header != nil || a.headerErr != nil, a.headerErr
}

func (a *Archive) readHeader(ctx context.Context) (*spec.Header, error) {
	a.logger.Debug("tilerange: read header", "archive", a.id)
	headerData, err := a.source.ReadRange(ctx, 0, spec.HeaderLength)
	if err != nil {
		return nil, fmt.Errorf("read header of %v: %w", a.id, err)
	}
	header, err := spec.DeserializeHeader(headerData)
	if err != nil {
		return nil, fmt.Errorf("read header of %v: %w", a.id, err)
	}
	a.logger.Debug("tilerange: header",
		"archive", a.id,
		"zoom", fmt.Sprintf("%d-%d", header.MinZoom, header.MaxZoom),
		"root", humanize.Bytes(header.RootLength),
		"leaves", humanize.Bytes(header.LeafDirectoryLength),
		"tiles", humanize.Bytes(header.TileDataLength),
		"compression", header.InternalCompression)
	return header, nil
}

// Directory returns the decoded directory stored at [offset, offset+length).
func (a *Archive) Directory(ctx context.Context, offset, length uint64) ([]spec.Entry, error) {
	header, err := a.Header(ctx)
	if err != nil {
		return nil, err
	}
	key := DirectoryKey{Archive: a.id, Offset: offset, Length: length}
	return a.cache.GetDirectory(ctx, key, func(ctx context.Context) ([]spec.Entry, error) {
		return a.readDirectory(ctx, header, offset, length)
	})
}

func (a *Archive) readDirectory(ctx context.Context, header *spec.Header, offset, length uint64) ([]spec.Entry, error) {
	a.logger.Debug("tilerange: read directory", "archive", a.id, "offset", offset, "length", humanize.Bytes(length))
	dirCompressed, err := a.source.ReadRange(ctx, offset, length)
	if err != nil {
		return nil, fmt.Errorf("read directory of %v at %v: %w", a.id, offset, err)
	}
	dirData, err := spec.Decompress(dirCompressed, header.InternalCompression)
	if err != nil {
		return nil, fmt.Errorf("read directory of %v at %v: %w", a.id, offset, err)
	}
	dirEntries, err := spec.DeserializeDirectory(dirData)
	if err != nil {
		return nil, fmt.Errorf("read directory of %v at %v: %w", a.id, offset, err)
	}
	return dirEntries, nil
}
