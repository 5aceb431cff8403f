package csvsource

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
)

// SourceInfo describes a source file on disk.
type SourceInfo struct {
	Source  domain.Source
	Path    string
	Exists  bool
	Size    int64
	Rows    int
	Columns []string
}

// Info reports the path, size, header and data row count of a source file.
// A missing file returns Exists=false and no error.
func (e *Extractor) Info(src domain.Source) (SourceInfo, error) {
	info := SourceInfo{Source: src, Path: e.paths[src]}
	if info.Path == "" {
		return info, nil
	}

	st, err := os.Stat(info.Path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("stat %s: %w", info.Path, err)
	}
	info.Exists = true
	info.Size = st.Size()

	f, err := os.Open(info.Path)
	if err != nil {
		return info, fmt.Errorf("open %s: %w", info.Path, err)
	}
	defer f.Close()

	r, err := newReader(f)
	if err != nil {
		return info, fmt.Errorf("open %s: %w", info.Path, err)
	}
	r.ReuseRecord = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("read header %s: %w", info.Path, err)
	}
	info.Columns = append([]string(nil), header...)

	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return info, fmt.Errorf("read %s: %w", info.Path, err)
		}
		info.Rows++
	}
	return info, nil
}
