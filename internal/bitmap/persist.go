package bitmap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Persister writes the three arrays to sum.txt/cumulative.txt/bool.txt as
// comma-joined integers on a single line, no more than once every interval
// (spec.md §4.6 Persistence), atomically from an observer's point of view
// via write-to-temp-then-rename.
type Persister struct {
	dir      string
	interval time.Duration

	mu       sync.Mutex
	lastFlush time.Time
}

// NewPersister creates a persister writing into dir no more often than interval.
func NewPersister(dir string, interval time.Duration) *Persister {
	return &Persister{dir: dir, interval: interval}
}

// MaybeFlush writes the bitmap's current arrays if at least interval has
// elapsed since the last successful flush. Returns whether a flush ran.
func (p *Persister) MaybeFlush(b *Bitmap) (bool, error) {
	p.mu.Lock()
	due := time.Since(p.lastFlush) >= p.interval
	p.mu.Unlock()
	if !due {
		return false, nil
	}
	if err := p.flush(b); err != nil {
		return false, err
	}
	p.mu.Lock()
	p.lastFlush = time.Now()
	p.mu.Unlock()
	return true, nil
}

func (p *Persister) flush(b *Bitmap) error {
	if err := writeAtomicRetry(filepath.Join(p.dir, "sum.txt"), joinUint64(b.Sum())); err != nil {
		return err
	}
	if err := writeAtomicRetry(filepath.Join(p.dir, "cumulative.txt"), joinUint32(b.Cumulative())); err != nil {
		return err
	}
	if err := writeAtomicRetry(filepath.Join(p.dir, "bool.txt"), joinUint8(b.Bool())); err != nil {
		return err
	}
	return nil
}

// writeAtomicRetry retries transient write failures (e.g. a full disk that
// briefly frees up) with backoff, then does a write-and-rename so readers
// never observe a partial file.
func writeAtomicRetry(path, content string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Second

	return backoff.Retry(func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			return fmt.Errorf("bitmap: write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("bitmap: rename %s -> %s: %w", tmp, path, err)
		}
		return nil
	}, bo)
}

func joinUint64(v []uint64) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(x, 10))
	}
	return sb.String()
}

func joinUint32(v []uint32) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
	}
	return sb.String()
}

func joinUint8(v []uint8) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(x)))
	}
	return sb.String()
}
