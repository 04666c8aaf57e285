package fragments

import (
	"context"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// tileBlobReader is the narrow slice of the blob store the tile reader
// needs.
type tileBlobReader interface {
	Reader(
		ctx context.Context,
		identity string,
		opts ...azblob.Option,
	) (*azblob.ReaderResponse, error)
}

// BlobStore reads leaf tiles from blob storage, one blob per tile under a
// fragment prefix. It implements TileReader for fragments whose tiles are
// not memory resident.
type BlobStore[T arrays.Scalar] struct {
	log    logger.Logger
	store  tileBlobReader
	prefix string
	dimNum int
}

// NewBlobStore creates a reader for the tiles below prefix, e.g.
// "v1/fragments/<fragment-id>/".
func NewBlobStore[T arrays.Scalar](log logger.Logger, store tileBlobReader, prefix string, dimNum int) *BlobStore[T] {
	return &BlobStore[T]{log: log, store: store, prefix: prefix, dimNum: dimNum}
}

// TilePath returns the storage path of a leaf tile below the fragment
// prefix.
func (s *BlobStore[T]) TilePath(tile uint64) string {
	return fmt.Sprintf("%stiles/%016d.tile", s.prefix, tile)
}

// FetchLeafTile implements TileReader.
func (s *BlobStore[T]) FetchLeafTile(ctx context.Context, tile uint64) (*TileData[T], error) {
	blobPath := s.TilePath(tile)
	rr, err := s.store.Reader(ctx, blobPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTileUnavailable, blobPath, err)
	}
	data, err := io.ReadAll(rr.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTileUnavailable, blobPath, err)
	}
	s.log.Debugf("read tile %d from %s: %d bytes", tile, blobPath, len(data))
	return UnmarshalTile[T](data, s.dimNum)
}
