package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
)

// Clock is a manually advanced core.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

var _ core.Clock = (*Clock)(nil)

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Logger records the logged messages.
type Logger struct {
	mu       sync.Mutex
	Messages []string // "LEVEL: msg"
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{}) { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{}) { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Mailer records the sent messages.
type Mailer struct {
	mu       sync.Mutex
	Messages []*core.EmailMessage
}

var _ core.EmailService = (*Mailer)(nil)

func (m *Mailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, messages...)
}

func (m *Mailer) Sent() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.EmailMessage(nil), m.Messages...)
}

// Secrets is a static secret store.
type Secrets map[string]string

func (s Secrets) Secret(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok && v != "" {
		return v, nil
	}
	return "", errors.Errorf("secret %s not found", name)
}

// FetchCall is one call to RosterSource.FetchPage.
type FetchCall struct {
	Kind     roster.Kind
	Page     int
	PageSize int
}

// RosterSource serves canned pages of raw records. Errors queued for a kind are returned, in order,
// before its pages are served: a nil error lets the call through. Like the HTTP client, it fails once
// the caller's context is done.
type RosterSource struct {
	mu     sync.Mutex
	Pages  map[roster.Kind][][]roster.RawRecord
	Errors map[roster.Kind][]error
	Calls  []FetchCall
	APIKey string
}

var _ roster.Source = (*RosterSource)(nil)

func NewRosterSource() *RosterSource {
	return &RosterSource{
		Pages:  make(map[roster.Kind][][]roster.RawRecord),
		Errors: make(map[roster.Kind][]error),
	}
}

// AddPage appends a page of records to `kind`.
func (s *RosterSource) AddPage(kind roster.Kind, records ...roster.RawRecord) *RosterSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pages[kind] = append(s.Pages[kind], records)
	return s
}

// FailWith queues errors for `kind`.
func (s *RosterSource) FailWith(kind roster.Kind, errs ...error) *RosterSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors[kind] = append(s.Errors[kind], errs...)
	return s
}

// Connect binds the API key, like rosterapi.Client.WithAPIKey.
func (s *RosterSource) Connect(apiKey string) roster.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.APIKey = apiKey
	return s
}

func (s *RosterSource) FetchPage(ctx context.Context, kind roster.Kind, page, pageSize int) (roster.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, FetchCall{Kind: kind, Page: page, PageSize: pageSize})
	if err := ctx.Err(); err != nil {
		return roster.Page{}, err
	}
	if errs := s.Errors[kind]; len(errs) > 0 {
		s.Errors[kind] = errs[1:]
		if errs[0] != nil {
			return roster.Page{}, errs[0]
		}
	}

	pages := s.Pages[kind]
	if len(pages) == 0 {
		return roster.Page{Page: page}, nil // no metadata: single page
	}
	if page < 1 || page > len(pages) {
		return roster.Page{}, errors.Errorf("page %d of %s out of range", page, kind)
	}
	return roster.Page{
		Records:      pages[page-1],
		Page:         page,
		TotalPages:   len(pages),
		HasMorePages: page < len(pages),
	}, nil
}

// CallsFor returns the fetched page numbers of `kind`.
func (s *RosterSource) CallsFor(kind roster.Kind) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pages []int
	for _, c := range s.Calls {
		if c.Kind == kind {
			pages = append(pages, c.Page)
		}
	}
	return pages
}
