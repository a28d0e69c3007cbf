package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
)

// Sender delivers encoded requests to the host.
type Sender interface {
	Send(req Request) error
}

// Host turns reconciler requests into wire requests.
type Host struct {
	sender Sender
}

// New creates a host that sends requests through s.
func New(s Sender) *Host {
	return &Host{sender: s}
}

// RequestPermission implements reconcile.Host.
func (h *Host) RequestPermission(perms ...reconcile.Permission) error {
	return h.sender.Send(permissionRequest(perms))
}

// Subscribe implements reconcile.Host.
func (h *Host) Subscribe(kinds ...reconcile.Kind) error {
	return h.sender.Send(subscribeRequest(kinds))
}

// SwitchMode implements reconcile.Host.
func (h *Host) SwitchMode(m mode.InputMode) error {
	return h.sender.Send(Request{Request: RequestSwitchMode, Mode: m.String()})
}

// HideSelf implements reconcile.Host.
func (h *Host) HideSelf() error {
	return h.sender.Send(Request{Request: RequestHideSelf})
}

// WriterSender writes one JSON request per line.
type WriterSender struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSender wraps w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{enc: json.NewEncoder(w)}
}

// Send implements Sender.
func (s *WriterSender) Send(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(req); err != nil {
		return fmt.Errorf("write %s request: %w", req.Request, err)
	}
	return nil
}

// maxLine bounds a single notification line; pane snapshots of large
// sessions can be long.
const maxLine = 4 * 1024 * 1024

// Reader is a notification source reading JSON lines.
type Reader struct {
	r      io.Reader
	logger *log.Logger
}

// NewReader creates a source over r.
func NewReader(r io.Reader, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Reader{r: r, logger: logger}
}

// Run decodes lines until EOF or ctx is done. Malformed lines are logged and
// skipped.
func (rd *Reader) Run(ctx context.Context, out chan<- reconcile.Notification) error {
	scanner := bufio.NewScanner(rd.r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		n, err := Decode(line)
		if err != nil {
			rd.logger.Warn("Skipping notification", "error", err)
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read notifications: %w", err)
	}
	return nil
}
