package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/page"
)

// StaticExtractor returns the same page for every URL it is asked about.
type StaticExtractor struct {
	Page *page.Context
	Err  error

	mu   sync.Mutex
	URLs []string
}

func (e *StaticExtractor) Extract(_ context.Context, url string) (*page.Context, error) {
	e.mu.Lock()
	e.URLs = append(e.URLs, url)
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := *e.Page
	out.URL = url
	return &out, nil
}

// Fetched returns the URLs extracted so far.
func (e *StaticExtractor) Fetched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.URLs...)
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	Err error

	mu     sync.Mutex
	events []*eventstream.ChatCompletedEvent
	closed bool
}

func (p *RecordingPublisher) PublishChat(_ context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns the events published so far.
func (p *RecordingPublisher) Events() []*eventstream.ChatCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.ChatCompletedEvent(nil), p.events...)
}

// Closed reports whether Close was called.
func (p *RecordingPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
