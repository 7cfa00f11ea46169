package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one line of the session journal: a single relay message with
// its direction and arrival time. Inbound frames are stored verbatim so
// a replay sees exactly what the live client saw, including frames the
// decoder rejected.
type Entry struct {
	TS  time.Time       `json:"ts"`
	Dir string          `json:"dir"` // "in" or "out"
	Msg json.RawMessage `json:"msg,omitempty"`

	// Text carries inbound frames that were not valid JSON.
	Text string `json:"text,omitempty"`
}

const (
	DirIn  = "in"
	DirOut = "out"
)

// Journal records the full message stream of one client run as a single
// zstd-compressed JSONL segment, created lazily on the first write.
// Write failures are logged and dropped; journaling never blocks or
// fails the session.
type Journal struct {
	dir string
	log *log.Logger

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// New opens a journal under dir.
func New(dir string, logger *log.Logger) *Journal {
	return &Journal{dir: dir, log: logger}
}

func (j *Journal) RecordInbound(raw []byte) {
	e := Entry{TS: time.Now().UTC(), Dir: DirIn}
	if json.Valid(raw) {
		e.Msg = json.RawMessage(raw)
	} else {
		e.Text = string(raw)
	}
	j.write(e)
}

func (j *Journal) RecordOutbound(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		j.logf("journal: marshal outbound: %v", err)
		return
	}
	j.write(Entry{TS: time.Now().UTC(), Dir: DirOut, Msg: b})
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var err1 error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err1 = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	return err1
}

func (j *Journal) write(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.w == nil {
		if err := j.openLocked(e.TS); err != nil {
			j.logf("journal: open: %v", err)
			return
		}
	}
	b, err := json.Marshal(e)
	if err != nil {
		j.logf("journal: marshal: %v", err)
		return
	}
	if _, err := j.w.Write(b); err != nil {
		j.logf("journal: write: %v", err)
		return
	}
	if err := j.w.WriteByte('\n'); err != nil {
		j.logf("journal: write: %v", err)
		return
	}
	if err := j.w.Flush(); err != nil {
		j.logf("journal: flush: %v", err)
	}
}

// openLocked creates the run's segment, named after its first entry.
func (j *Journal) openLocked(start time.Time) error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("session-%s.jsonl.zst", start.UTC().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (j *Journal) logf(format string, args ...any) {
	if j.log != nil {
		j.log.Printf(format, args...)
	}
}
