package pm

import (
	"bufio"
	"cmp"
	"crypto/md5"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/tilerange/pm/spec"
	"github.com/eak1mov/tilerange/tile"
)

// Writer creates clustered PMTiles v3 archives. Identical tiles are stored
// once and consecutive identical tiles collapse into run-length entries.
type Writer struct {
	logger *slog.Logger
	file   *os.File
	header spec.Header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries   []spec.Entry
	locations map[[16]byte]uint32 // hash -> entry index

	minZoom uint32
	maxZoom uint32
}

type writerConfig struct {
	Metadata            []byte
	HeaderMetadata      HeaderMetadata
	InternalCompression spec.Compression
	Logger              *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata []byte) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithHeaderMetadata(headerMetadata HeaderMetadata) WriterOption {
	return func(c *writerConfig) { c.HeaderMetadata = headerMetadata }
}

// WithInternalCompression sets the compression of directories (gzip by default).
func WithInternalCompression(compression spec.Compression) WriterOption {
	return func(c *writerConfig) { c.InternalCompression = compression }
}

func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates the archive file and reserves space for the header and
// the root directory. Finalize must be called to produce a readable archive.
func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	params := writerConfig{
		InternalCompression: spec.CompressionGzip,
		Logger:              slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&params)
	}
	logger := params.Logger

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	header := spec.Header{}
	offset := uint64(spec.HeaderRootDirMaxLength)

	_, err = file.Seek(int64(offset), io.SeekStart)
	if err != nil {
		return nil, err
	}

	if params.Metadata != nil {
		_, err := file.Write(params.Metadata)
		if err != nil {
			return nil, err
		}
		header.MetadataOffset = offset
		header.MetadataLength = uint64(len(params.Metadata))
		offset += header.MetadataLength
	}

	header.HeaderMagic = spec.HeaderMagicV3
	header.Clustered = true
	header.InternalCompression = params.InternalCompression
	header.TileDataOffset = offset
	params.HeaderMetadata.CopyToHeader(&header)

	return &Writer{
		logger:     logger,
		file:       file,
		header:     header,
		tileWriter: bufio.NewWriter(file),
		tileOffset: 0,
		locations:  make(map[[16]byte]uint32),
	}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if len(tileData) == 0 {
		return nil
	}

	if len(w.entries) == 0 {
		w.minZoom, w.maxZoom = tileID.Z, tileID.Z
	}
	w.minZoom = min(w.minZoom, tileID.Z)
	w.maxZoom = max(w.maxZoom, tileID.Z)

	digest := md5.Sum(tileData)
	entryIdx, exists := w.locations[digest]

	if exists {
		w.header.AddressedTilesCount++
		entry := spec.Entry{
			TileCode:  spec.EncodeTileID(tileID),
			Offset:    w.entries[entryIdx].Offset,
			Length:    w.entries[entryIdx].Length,
			RunLength: 1,
		}
		w.entries = append(w.entries, entry)
		return nil
	}

	entry := spec.Entry{
		TileCode:  spec.EncodeTileID(tileID),
		Offset:    w.tileOffset,
		Length:    uint32(len(tileData)),
		RunLength: 1,
	}

	_, err := w.tileWriter.Write(tileData)
	if err != nil {
		return err
	}

	w.tileOffset += uint64(len(tileData))
	w.header.AddressedTilesCount++
	w.header.TileContentsCount++

	w.locations[digest] = uint32(len(w.entries))
	w.entries = append(w.entries, entry)

	return nil
}

func (w *Writer) Finalize() error {
	if w.tileWriter == nil {
		panic("tilerange: finalize called twice")
	}

	w.logger.Debug("tilerange: flush")
	err := w.tileWriter.Flush()
	if err != nil {
		return err
	}
	w.header.TileDataLength = w.tileOffset
	w.tileWriter = nil

	// zoom range left unset by WithHeaderMetadata
	if w.header.MinZoom == 0 && w.header.MaxZoom == 0 && len(w.entries) > 0 {
		w.header.MinZoom = uint8(w.minZoom)
		w.header.MaxZoom = uint8(w.maxZoom)
	}

	w.logger.Debug("tilerange: sort")
	slices.SortFunc(w.entries, func(a, b spec.Entry) int {
		return cmp.Compare(a.TileCode, b.TileCode)
	})

	w.logger.Debug("tilerange: compact")
	w.entries = spec.CompactEntries(w.entries)
	w.header.TileEntriesCount = uint64(len(w.entries))

	w.logger.Debug("tilerange: serialize")
	rootBytes, leavesBytes := spec.SerializeAll(w.entries, w.header.InternalCompression)

	w.logger.Debug("tilerange: write leaves")
	leavesOffset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	_, err = w.file.Write(leavesBytes)
	if err != nil {
		return err
	}
	w.header.LeafDirectoryOffset = uint64(leavesOffset)
	w.header.LeafDirectoryLength = uint64(len(leavesBytes))

	w.logger.Debug("tilerange: write root")
	_, err = w.file.Seek(spec.RootDirOffset, io.SeekStart)
	if err != nil {
		return err
	}
	_, err = w.file.Write(rootBytes)
	if err != nil {
		return err
	}
	w.header.RootOffset = spec.RootDirOffset
	w.header.RootLength = uint64(len(rootBytes))

	w.logger.Debug("tilerange: write header")
	_, err = w.file.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}
	headerData := spec.SerializeHeader(&w.header)
	_, err = w.file.Write(headerData)
	if err != nil {
		return err
	}

	w.logger.Debug("tilerange: flush")
	err = w.file.Close()
	if err != nil {
		return err
	}
	w.file = nil

	w.logger.Debug("tilerange: done!",
		"tiles", w.header.AddressedTilesCount,
		"entries", w.header.TileEntriesCount,
		"size", humanize.Bytes(w.header.TileDataOffset+w.header.TileDataLength))
	return nil
}

func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
