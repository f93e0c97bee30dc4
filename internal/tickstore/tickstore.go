// Package tickstore implements the durable append-only tick log: a flat
// binary file per (symbol, date) partition for trade ticks, a sibling
// variable-width file for order-book snapshots, range queries over both,
// OHLCV bar aggregation, and compression of aged partitions.
package tickstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tradecore/internal/common"
)

// ErrPartialRecordTruncated is logged (not returned) when a torn trailing
// record is discarded on open; writers never see torn records because the
// truncation happens before any further appends.
var ErrPartialRecordTruncated = errors.New("tickstore: truncated partial trailing record")

const defaultFlushThreshold = 10_000

// partitionDateLayout is the YYYYMMDD date component of a partition file
// name per spec.md's tick binary format (`<symbol>/<YYYYMMDD>.ticks`).
const partitionDateLayout = "20060102"

// partitionExt is the partition file extension spec.md mandates for the
// tick binary format; reused for the sibling snapshot partitions too.
const partitionExt = ".ticks"

// Store is the append-only tick log rooted at a base directory. Safe for
// concurrent use.
type Store struct {
	baseDir         string
	flushThreshold  int
	compressionAge  time.Duration

	mu      sync.Mutex
	writers map[string]*partitionWriter
}

type partitionWriter struct {
	file    *os.File
	buf     *bufio.Writer
	pending int
}

// New constructs a Store rooted at baseDir, creating it if necessary.
// compressionAge is the age (default 7 days when 0) after which
// CompressAged will gzip a partition.
func New(baseDir string, compressionAge time.Duration) (*Store, error) {
	if compressionAge <= 0 {
		compressionAge = 7 * 24 * time.Hour
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("tickstore: create base dir: %w", err)
	}
	return &Store{
		baseDir:        baseDir,
		flushThreshold: defaultFlushThreshold,
		compressionAge: compressionAge,
		writers:        make(map[string]*partitionWriter),
	}, nil
}

func partitionDate(us int64) string {
	return time.UnixMicro(us).UTC().Format(partitionDateLayout)
}

func (s *Store) tradePartitionPath(symbol string, date string) string {
	return filepath.Join(s.baseDir, "ticks", symbol, date+partitionExt)
}

func (s *Store) snapshotPartitionPath(symbol string, date string) string {
	return filepath.Join(s.baseDir, "snapshots", symbol, date+partitionExt)
}

// WriteTick appends a single trade tick to its (symbol, date) partition.
func (s *Store) WriteTick(t common.TickData) error {
	return s.WriteTicksBatch([]common.TickData{t})
}

// WriteTicksBatch groups ticks by (symbol, date) partition and appends
// each group, flushing and fsync-ing once the buffered count for a
// partition reaches the configured threshold.
func (s *Store) WriteTicksBatch(ticks []common.TickData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]common.TickData)
	for _, t := range ticks {
		if t.DataType != common.TickTrade {
			continue
		}
		key := t.Symbol + "|" + partitionDate(t.TimestampUs)
		groups[key] = append(groups[key], t)
	}

	for key, group := range groups {
		symbol := group[0].Symbol
		date := partitionDate(group[0].TimestampUs)
		_ = key

		w, err := s.writerFor(symbol, date)
		if err != nil {
			return err
		}
		for _, t := range group {
			rec := encodeTradeRecord(t)
			if _, err := w.buf.Write(rec[:]); err != nil {
				return fmt.Errorf("tickstore: write record: %w", err)
			}
			w.pending++
		}
		if w.pending >= s.flushThreshold {
			if err := s.flushWriter(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) writerFor(symbol, date string) (*partitionWriter, error) {
	key := symbol + "|" + date
	if w, ok := s.writers[key]; ok {
		return w, nil
	}

	path := s.tradePartitionPath(symbol, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tickstore: create partition dir: %w", err)
	}
	if err := truncatePartialTrailingRecord(path, tradeRecordSize); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tickstore: open partition: %w", err)
	}
	w := &partitionWriter{file: f, buf: bufio.NewWriter(f)}
	s.writers[key] = w
	return w, nil
}

func (s *Store) flushWriter(w *partitionWriter) error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("tickstore: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("tickstore: fsync: %w", err)
	}
	w.pending = 0
	return nil
}

// Flush forces a flush+fsync of every open partition writer. Call before
// process shutdown to guarantee no buffered records are lost.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writers {
		if err := s.flushWriter(w); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes every open partition writer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.writers {
		if err := s.flushWriter(w); err != nil {
			return err
		}
		if err := w.file.Close(); err != nil {
			return err
		}
		delete(s.writers, key)
	}
	return nil
}

// truncatePartialTrailingRecord drops a torn trailing record left by a
// crash mid-write, so writers never append onto a corrupt tail.
func truncatePartialTrailingRecord(path string, recordSize int) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tickstore: stat partition: %w", err)
	}
	remainder := info.Size() % int64(recordSize)
	if remainder == 0 {
		return nil
	}
	log.Warn().Str("path", path).Int64("bytes", remainder).Msg("tickstore: truncating torn trailing record")
	return os.Truncate(path, info.Size()-remainder)
}

// QueryTicks returns trade ticks for symbol within [start, end] in
// timestamp order, reading every daily partition the range touches.
func (s *Store) QueryTicks(symbol string, start, end time.Time) ([]common.TickData, error) {
	s.mu.Lock()
	// Ensure any buffered data for partitions we're about to read is
	// visible on disk.
	for _, w := range s.writers {
		if err := s.flushWriter(w); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	startUs := start.UnixMicro()
	endUs := end.UnixMicro()

	var out []common.TickData
	for d := start.UTC(); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		date := d.Format(partitionDateLayout)
		records, err := s.readTradePartition(symbol, date)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, t := range records {
			if t.TimestampUs >= startUs && t.TimestampUs <= endUs {
				out = append(out, t)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TimestampUs < out[j].TimestampUs })
	return out, nil
}

// GetLatestTick scans the newest available partition backwards for the
// most recent trade tick. within is the number of trailing days to
// search before giving up.
func (s *Store) GetLatestTick(symbol string, within int) (common.TickData, bool, error) {
	if within <= 0 {
		within = 30
	}
	now := time.Now().UTC()
	for i := 0; i < within; i++ {
		date := now.AddDate(0, 0, -i).Format(partitionDateLayout)
		records, err := s.readTradePartition(symbol, date)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return common.TickData{}, false, err
		}
		if len(records) > 0 {
			return records[len(records)-1], true, nil
		}
	}
	return common.TickData{}, false, nil
}

// readTradePartition reads and decodes one partition file, transparently
// decompressing a .gz sibling if the plain file is absent.
func (s *Store) readTradePartition(symbol, date string) ([]common.TickData, error) {
	path := s.tradePartitionPath(symbol, date)
	r, closer, err := openTransparent(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tickstore: read partition: %w", err)
	}

	n := len(data) / tradeRecordSize
	out := make([]common.TickData, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*tradeRecordSize : (i+1)*tradeRecordSize]
		out = append(out, decodeTradeRecord(rec, symbol, ""))
	}
	return out, nil
}
