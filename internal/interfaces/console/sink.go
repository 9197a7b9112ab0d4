package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"pricebot/internal/application/port"
)

// Sink prints session messages to a terminal. It keeps the last text of
// every message so edits can be told apart from deleted messages.
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	seq  int64
	msgs map[string]map[string]string // session -> message id -> text
	now  func() time.Time
}

func NewSink() *Sink { return NewSinkTo(os.Stdout) }

func NewSinkTo(out io.Writer) *Sink {
	return &Sink{out: out, msgs: make(map[string]map[string]string), now: time.Now}
}

func (s *Sink) Send(ctx context.Context, session, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := strconv.FormatInt(s.seq, 10)
	if s.msgs[session] == nil {
		s.msgs[session] = make(map[string]string)
	}
	s.msgs[session][id] = text
	s.print(session, id, "new", text)
	return id, nil
}

func (s *Sink) Edit(ctx context.Context, session, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.msgs[session][messageID]
	if !ok {
		return port.ErrMessageGone
	}
	if old == text {
		return nil
	}
	s.msgs[session][messageID] = text
	s.print(session, messageID, "edit", text)
	return nil
}

// Delete forgets a message; later edits of it fail with port.ErrMessageGone.
func (s *Sink) Delete(session, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[session][messageID]; !ok {
		return false
	}
	delete(s.msgs[session], messageID)
	return true
}

func (s *Sink) print(session, id, op, text string) {
	fmt.Fprintf(s.out, "%s [%s #%s %s]\n%s\n\n", s.now().Format("2006-01-02 15:04:05"), session, id, op, text)
}

var _ port.Publisher = (*Sink)(nil)
