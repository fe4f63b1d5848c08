package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/trustops/internal/pathutil"
)

// JSONLSink appends one JSON object per line and rotates the file by size.
// Rotated files sit next to Path as "<Path>.<UTC timestamp>"; List and the
// sequence recovery read them together with the active file.
type JSONLSink struct {
	Path           string
	RotateMaxBytes int64

	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	size int64
	seq  int64
}

func NewJSONLSink(path string, rotateMaxBytes int64) (*JSONLSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing jsonl path")
	}
	if rotateMaxBytes <= 0 {
		rotateMaxBytes = 100 * 1024 * 1024
	}
	s := &JSONLSink{
		Path:           path,
		RotateMaxBytes: rotateMaxBytes,
	}
	if err := s.openLocked(); err != nil {
		return nil, err
	}
	last, err := s.lastSeqLocked()
	if err != nil {
		_ = s.f.Close()
		return nil, err
	}
	s.seq = last
	return s, nil
}

func (s *JSONLSink) Write(ctx context.Context, e *Entry) error {
	_ = ctx
	if s == nil || e == nil {
		return fmt.Errorf("nil audit sink or entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return fmt.Errorf("audit sink is closed")
	}
	e.Seq = s.seq + 1
	b, err := json.Marshal(e)
	if err != nil {
		e.Seq = 0
		return err
	}
	if err := s.rotateIfNeededLocked(int64(len(b)) + 1); err != nil {
		e.Seq = 0
		return err
	}
	n, err := s.w.Write(append(b, '\n'))
	if err == nil {
		err = s.w.Flush()
	}
	if err != nil {
		e.Seq = 0
		return err
	}
	s.seq = e.Seq
	s.size += int64(n)
	return nil
}

func (s *JSONLSink) List(ctx context.Context, q Query) ([]Entry, error) {
	_ = ctx
	if s == nil {
		return nil, fmt.Errorf("nil audit sink")
	}
	// Held for the whole scan so a rotation cannot rename a file mid-read.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil, fmt.Errorf("audit sink is closed")
	}
	if err := s.w.Flush(); err != nil {
		return nil, err
	}

	paths, err := s.segmentsLocked()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, p := range paths {
		err := scanJSONL(p, func(line []byte) error {
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if q.matches(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.SortStableFunc(out, newerFirst)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *JSONLSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		s.w = nil
		s.size = 0
		return err
	}
	return nil
}

func (s *JSONLSink) openLocked() error {
	if err := pathutil.EnsureParentDir(s.Path); err != nil {
		return err
	}

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if st, err := f.Stat(); err == nil {
		s.size = st.Size()
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// lastSeqLocked recovers the sequence so a reopened file keeps counting.
func (s *JSONLSink) lastSeqLocked() (int64, error) {
	paths, err := s.segmentsLocked()
	if err != nil {
		return 0, err
	}
	var last int64
	for _, p := range paths {
		err := scanJSONL(p, func(line []byte) error {
			var e struct {
				Seq int64 `json:"seq"`
			}
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			last = max(last, e.Seq)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return last, nil
}

const rotatedLayout = "20060102T150405.000000000Z"

// segmentsLocked returns the rotated files oldest first, then the active file.
func (s *JSONLSink) segmentsLocked() ([]string, error) {
	dir, base := filepath.Dir(s.Path), filepath.Base(s.Path)
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var rotated []string
	for _, de := range des {
		suffix, ok := strings.CutPrefix(de.Name(), base+".")
		if !ok || de.IsDir() {
			continue
		}
		if _, err := time.Parse(rotatedLayout, suffix); err != nil {
			continue
		}
		rotated = append(rotated, filepath.Join(dir, de.Name()))
	}
	// The timestamp layout sorts lexically in time order.
	slices.Sort(rotated)
	return append(rotated, s.Path), nil
}

func scanJSONL(path string, fn func(line []byte) error) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("corrupt audit line in %s: %w", path, err)
		}
	}
	return nil
}

func (s *JSONLSink) rotateIfNeededLocked(addBytes int64) error {
	if s.RotateMaxBytes <= 0 {
		return nil
	}
	if s.size == 0 || s.size+addBytes <= s.RotateMaxBytes {
		return nil
	}

	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.f != nil {
		_ = s.f.Close()
	}

	ts := time.Now().UTC().Format(rotatedLayout)
	rotated := fmt.Sprintf("%s.%s", s.Path, ts)
	if err := os.Rename(s.Path, rotated); err != nil {
		// If rename fails, keep appending to the current file.
		return s.openLocked()
	}
	s.f = nil
	s.w = nil
	s.size = 0
	return s.openLocked()
}
