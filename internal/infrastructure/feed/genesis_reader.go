package feed

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// GenesisFileReader streams genesis records from JSON-lines files, one record
// per line, in file order. Files ending in .zst are zstd-decompressed.
type GenesisFileReader struct {
	paths []string
	next  int

	file    *os.File
	zr      *zstd.Decoder
	decoder *json.Decoder
	current string
}

// NewGenesisFileReader creates a reader over paths
func NewGenesisFileReader(paths ...string) *GenesisFileReader {
	return &GenesisFileReader{paths: paths}
}

// Next returns the next record, or io.EOF after the last file
func (r *GenesisFileReader) Next() (*entities.GenesisRecord, error) {
	for {
		if r.decoder == nil {
			if r.next >= len(r.paths) {
				return nil, io.EOF
			}
			if err := r.open(r.paths[r.next]); err != nil {
				return nil, err
			}
			r.next++
		}

		var record entities.GenesisRecord
		err := r.decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			if err := r.closeCurrent(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode genesis record in %s: %w", r.current, err)
		}
		if record.Type == "" {
			return nil, fmt.Errorf("genesis record without type in %s", r.current)
		}

		return &record, nil
	}
}

// Close releases the current file
func (r *GenesisFileReader) Close() error {
	return r.closeCurrent()
}

func (r *GenesisFileReader) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open genesis file: %w", err)
	}

	var src io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to open zstd stream %s: %w", path, err)
		}
		r.zr = zr
		src = zr
	}

	r.file = f
	r.current = path
	r.decoder = json.NewDecoder(bufio.NewReaderSize(src, 1<<20))
	return nil
}

func (r *GenesisFileReader) closeCurrent() error {
	r.decoder = nil
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
