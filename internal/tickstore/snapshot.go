package tickstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"tradecore/internal/common"
)

// snapshotLevelSize is the width of one (price, size, order_count) level
// record within a snapshot: 8+8+4 bytes.
const snapshotLevelSize = 20

// WriteSnapshot appends a variable-width order-book snapshot record:
// 8-byte timestamp, 2-byte bid-count, 2-byte ask-count, then bid-count +
// ask-count level records.
func (s *Store) WriteSnapshot(symbol string, snap common.OrderBookSnapshot) error {
	if len(snap.Bids) > math.MaxUint16 || len(snap.Asks) > math.MaxUint16 {
		return fmt.Errorf("tickstore: snapshot has too many levels for symbol %s", symbol)
	}

	path := s.snapshotPartitionPath(symbol, snap.Timestamp.UTC().Format(partitionDateLayout))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tickstore: create snapshot dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("tickstore: open snapshot partition: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	binary.LittleEndian.PutUint64(header[0:8], uint64(snap.Timestamp.UnixMicro()))
	binary.LittleEndian.PutUint16(header[8:10], uint16(len(snap.Bids)))
	binary.LittleEndian.PutUint16(header[10:12], uint16(len(snap.Asks)))

	buf := make([]byte, 0, len(header)+(len(snap.Bids)+len(snap.Asks))*snapshotLevelSize)
	buf = append(buf, header...)
	for _, lv := range append(append([]common.OrderBookLevel{}, snap.Bids...), snap.Asks...) {
		buf = append(buf, encodeLevel(lv)...)
	}

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("tickstore: write snapshot: %w", err)
	}
	return f.Sync()
}

func encodeLevel(lv common.OrderBookLevel) []byte {
	b := make([]byte, snapshotLevelSize)
	price, _ := lv.Price.Float64()
	size, _ := lv.Size.Float64()
	binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(price))
	binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(size))
	binary.LittleEndian.PutUint32(b[16:20], uint32(lv.OrderCount))
	return b
}

func decodeLevel(b []byte) common.OrderBookLevel {
	price := math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
	size := math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
	count := binary.LittleEndian.Uint32(b[16:20])
	return common.OrderBookLevel{
		Price:      decimalFromFloat(price),
		Size:       decimalFromFloat(size),
		OrderCount: int(count),
	}
}

// QuerySnapshots returns order-book snapshots for symbol within
// [start, end], in timestamp order, reading every daily partition the
// range touches.
func (s *Store) QuerySnapshots(symbol string, start, end time.Time) ([]common.OrderBookSnapshot, error) {
	startUs := start.UnixMicro()
	endUs := end.UnixMicro()

	var out []common.OrderBookSnapshot
	for d := start.UTC(); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		date := d.Format(partitionDateLayout)
		path := s.snapshotPartitionPath(symbol, date)
		r, closer, err := openTransparent(path)
		if err != nil {
			continue
		}
		snaps, perr := decodeSnapshotStream(r, symbol)
		closer()
		if perr != nil {
			return nil, perr
		}
		for _, snap := range snaps {
			us := snap.Timestamp.UnixMicro()
			if us >= startUs && us <= endUs {
				out = append(out, snap)
			}
		}
	}
	return out, nil
}

func decodeSnapshotStream(r io.Reader, symbol string) ([]common.OrderBookSnapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tickstore: read snapshot partition: %w", err)
	}

	var out []common.OrderBookSnapshot
	offset := 0
	for offset+12 <= len(data) {
		ts := int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
		bidCount := int(binary.LittleEndian.Uint16(data[offset+8 : offset+10]))
		askCount := int(binary.LittleEndian.Uint16(data[offset+10 : offset+12]))
		offset += 12

		need := (bidCount + askCount) * snapshotLevelSize
		if offset+need > len(data) {
			// Torn trailing record from a crash mid-write; stop here.
			break
		}

		bids := make([]common.OrderBookLevel, bidCount)
		for i := 0; i < bidCount; i++ {
			bids[i] = decodeLevel(data[offset : offset+snapshotLevelSize])
			offset += snapshotLevelSize
		}
		asks := make([]common.OrderBookLevel, askCount)
		for i := 0; i < askCount; i++ {
			asks[i] = decodeLevel(data[offset : offset+snapshotLevelSize])
			offset += snapshotLevelSize
		}

		out = append(out, common.OrderBookSnapshot{
			Instrument: symbol,
			Bids:       bids,
			Asks:       asks,
			Timestamp:  time.UnixMicro(ts),
		})
	}
	return out, nil
}
