// Package csvsource reads the temperature extracts from CSV files on disk.
package csvsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor streams source files in fixed-size chunks.
// It implements pipeline.Extractor.
type Extractor struct {
	paths  map[domain.Source]string
	logger *slog.Logger
}

// NewExtractor creates an Extractor reading each source from its path.
// Sources without a path are reported as not found.
func NewExtractor(paths map[domain.Source]string, logger *slog.Logger) *Extractor {
	return &Extractor{paths: paths, logger: logger}
}

// DefaultPaths places every source under dir with its standard file name.
func DefaultPaths(dir string) map[domain.Source]string {
	paths := make(map[domain.Source]string)
	for _, src := range domain.Sources() {
		paths[src] = filepath.Join(dir, src.FileName())
	}
	return paths
}

// Extract calls fn with consecutive chunks of at most chunkSize rows. Every
// chunk carries the file header. A missing file wraps
// domain.ErrSourceNotFound.
func (e *Extractor) Extract(ctx context.Context, src domain.Source, chunkSize int, fn func(domain.RawTable) error) error {
	path, ok := e.paths[src]
	if !ok || path == "" {
		return fmt.Errorf("%s: no path configured: %w", src, domain.ErrSourceNotFound)
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, domain.ErrSourceNotFound)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, err := newReader(f)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		e.logger.Warn("empty source file", "source", src.String(), "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	header = append([]string(nil), header...)

	e.logger.Debug("extracting source", "source", src.String(), "path", path, "chunk_size", chunkSize)

	rows := make([][]string, 0, min(chunkSize, 4096))
	total := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, rec)
		if len(rows) < chunkSize {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(domain.RawTable{Header: header, Rows: rows}); err != nil {
			return err
		}
		total += len(rows)
		rows = make([][]string, 0, min(chunkSize, 4096))
	}
	if len(rows) > 0 {
		if err := fn(domain.RawTable{Header: header, Rows: rows}); err != nil {
			return err
		}
		total += len(rows)
	}

	e.logger.Info("source extracted", "source", src.String(), "path", path, "rows", total)
	return nil
}

// newReader wraps r in a csv.Reader that skips a leading UTF-8 BOM and
// tolerates ragged rows.
func newReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	return cr, nil
}
