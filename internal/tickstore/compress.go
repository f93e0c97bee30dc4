package tickstore

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// openTransparent opens path, falling back to path+".gz" and wrapping it
// in a gzip reader if the plain file does not exist. The returned closer
// must be called once the caller is done reading.
func openTransparent(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err == nil {
		return f, func() { f.Close() }, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("tickstore: open %s: %w", path, err)
	}

	gf, gerr := os.Open(path + ".gz")
	if gerr != nil {
		return nil, nil, err // surface the original os.ErrNotExist
	}
	gr, gzErr := gzip.NewReader(gf)
	if gzErr != nil {
		gf.Close()
		return nil, nil, fmt.Errorf("tickstore: gzip reader for %s: %w", path, gzErr)
	}
	return gr, func() { gr.Close(); gf.Close() }, nil
}

// CompressAged walks both the trade-tick and snapshot partition trees and
// gzip-compresses any partition whose date is older than the store's
// configured compression age, replacing the plain file with a .gz sibling
// of the same name. Already-compressed partitions and today's still-open
// partition are left alone.
func (s *Store) CompressAged(now time.Time) error {
	s.mu.Lock()
	for _, w := range s.writers {
		if err := s.flushWriter(w); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	cutoff := now.Add(-s.compressionAge)
	for _, root := range []string{filepath.Join(s.baseDir, "ticks"), filepath.Join(s.baseDir, "snapshots")} {
		if err := compressTreeOlderThan(root, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func compressTreeOlderThan(root string, cutoff time.Time) error {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tickstore: read dir %s: %w", root, err)
	}

	for _, symbolDir := range entries {
		if !symbolDir.IsDir() {
			continue
		}
		dir := filepath.Join(root, symbolDir.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("tickstore: read dir %s: %w", dir, err)
		}
		for _, f := range files {
			name := f.Name()
			if filepath.Ext(name) != partitionExt {
				continue
			}
			date, perr := time.Parse(partitionDateLayout, name[:len(name)-len(partitionExt)])
			if perr != nil || !date.Before(cutoff) {
				continue
			}
			if err := compressFile(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tickstore: open for compress: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("tickstore: create gz: %w", err)
	}
	gw := gzip.NewWriter(out)

	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return fmt.Errorf("tickstore: gzip copy: %w", err)
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("tickstore: gzip close: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("tickstore: close gz: %w", err)
	}

	in.Close()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("tickstore: remove compressed source: %w", err)
	}
	log.Info().Str("path", path).Msg("tickstore: partition compressed")
	return nil
}
