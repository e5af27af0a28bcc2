// Package router dispatches typed client requests (chat, page analysis,
// context actions, settings) to the Azure client and its collaborators.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/cometx/pkg/azure"
	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/eventstream/nop"
	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/history/inmemory"
	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/logger"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/prompt"
	"github.com/papercomputeco/cometx/pkg/settings"
)

// Router owns one cached *azure.Client built from the current settings.
// The cache is dropped by SAVE_SETTINGS, by Invalidate, and by Watch when the
// settings files change on disk.
type Router struct {
	settings   settings.Store
	extractor  page.Extractor
	history    history.Store
	publisher  eventstream.Publisher
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	client *azure.Client
	opts   *llm.Options
	lang   string
}

// Option configures a Router.
type Option func(*Router)

func WithExtractor(e page.Extractor) Option {
	return func(r *Router) { r.extractor = e }
}

func WithHistory(h history.Store) Option {
	return func(r *Router) { r.history = h }
}

func WithPublisher(p eventstream.Publisher) Option {
	return func(r *Router) { r.publisher = p }
}

// WithHTTPClient sets the HTTP client handed to every azure.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Router) { r.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router reading settings from store.
func New(store settings.Store, opts ...Option) *Router {
	r := &Router{
		settings:  store,
		extractor: page.NewHTTPExtractor(),
		history:   inmemory.NewStore(),
		publisher: nop.NewPublisher(),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract fetches and parses the page at url.
func (r *Router) Extract(ctx context.Context, url string) (*page.Context, error) {
	return r.extractor.Extract(ctx, url)
}

// History returns the conversation store.
func (r *Router) History() history.Store {
	return r.history
}

// Settings returns the settings store.
func (r *Router) Settings() settings.Store {
	return r.settings
}

// Handle dispatches req and wraps the outcome in a Response.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	data, err := r.Dispatch(ctx, req)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

// Dispatch runs req and returns its data. Errors keep their type so callers
// can map them to transport status codes.
func (r *Router) Dispatch(ctx context.Context, req Request) (any, error) {
	r.logger.Debug("message received", "type", req.Type)

	switch req.Type {
	case TypeChat:
		var p ChatPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return r.Chat(ctx, p)

	case TypeAnalyzePage:
		var p AnalyzePayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if p.URL == "" {
			return nil, &PayloadError{Type: req.Type, Reason: "url is required"}
		}
		return r.Extract(ctx, p.URL)

	case TypeGetSelection:
		var p SelectionPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return selection(p), nil

	case TypeAsk, TypeSummarize, TypeExplain, TypeTranslate:
		var p ActionPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return r.Action(ctx, actionFor(req.Type), p)

	case TypeGetSettings:
		s, err := r.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		redacted := s.Redacted()
		return &redacted, nil

	case TypeSaveSettings:
		var s settings.Settings
		if err := decode(req, &s); err != nil {
			return nil, err
		}
		if err := r.settings.Set(ctx, &s); err != nil {
			return nil, err
		}
		r.Invalidate()
		return nil, nil

	default:
		return nil, &UnknownTypeError{Type: req.Type}
	}
}

// Chat sends the conversation with the page context as system prompt and
// records the exchange.
func (r *Router) Chat(ctx context.Context, p ChatPayload) (*ChatResult, error) {
	if len(p.Messages) == 0 {
		return nil, &PayloadError{Type: TypeChat, Reason: "messages are required"}
	}

	client, opts, err := r.Client(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	msgs := prompt.Conversation(p.Context, p.Messages)
	reply, err := client.Complete(ctx, msgs, opts)
	if err != nil {
		r.logger.Warn("chat failed", "deployment", client.Config().Deployment, "error", err)
		return nil, err
	}

	convID := r.record(ctx, exchange{
		conversationID: p.ConversationID,
		pageURL:        pageURL(p.Context),
		deployment:     client.Config().Deployment,
		messages:       p.Messages,
		reply:          reply,
		started:        started,
	})

	return &ChatResult{Content: reply, ConversationID: convID}, nil
}

// Action runs a one-shot context action as a single-message chat.
func (r *Router) Action(ctx context.Context, action prompt.Action, p ActionPayload) (*ChatResult, error) {
	payload, err := r.actionChat(ctx, action, p)
	if err != nil {
		return nil, err
	}
	return r.Chat(ctx, payload)
}

// actionChat turns an action into the chat it stands for, fetching the page
// when only its URL is known.
func (r *Router) actionChat(ctx context.Context, action prompt.Action, p ActionPayload) (ChatPayload, error) {
	pc := p.Context
	if pc == nil && p.PageURL != "" {
		extracted, err := r.Extract(ctx, p.PageURL)
		if err != nil {
			return ChatPayload{}, err
		}
		pc = extracted
	}

	if strings.TrimSpace(p.Text) == "" && (action != prompt.ActionSummarize || pc == nil) {
		return ChatPayload{}, &PayloadError{Type: typeFor(action), Reason: "text is required"}
	}

	if pc != nil && p.Text != "" && pc.SelectedText == "" {
		withSel := *pc
		withSel.SelectedText = p.Text
		pc = &withSel
	}

	return ChatPayload{
		Messages:       []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt.ActionPrompt(action, p.Text, r.language(ctx)))},
		Context:        pc,
		ConversationID: p.ConversationID,
	}, nil
}

// Client returns the cached client and generation options, building them
// from the settings store on first use.
func (r *Router) Client(ctx context.Context) (*azure.Client, *llm.Options, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, r.opts, nil
	}

	s, err := r.settings.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	if !s.HasKey() {
		return nil, nil, ErrNotConfigured
	}

	clientOpts := []azure.Option{azure.WithLogger(r.logger)}
	if r.httpClient != nil {
		clientOpts = append(clientOpts, azure.WithHTTPClient(r.httpClient))
	}

	r.client = azure.New(azure.ConnectionConfig{
		Endpoint:   s.APIEndpoint,
		APIKey:     s.APIKey,
		Deployment: s.DefaultModel,
		APIVersion: s.APIVersion,
	}, clientOpts...)
	r.opts = (&llm.Options{}).WithTemperature(s.Temperature).WithMaxTokens(s.MaxTokens)
	r.lang = s.Language

	r.logger.Info("ai client initialised",
		"endpoint", s.APIEndpoint,
		"deployment", s.DefaultModel,
		logger.Secret("api_key", s.APIKey),
	)

	return r.client, r.opts, nil
}

// Invalidate drops the cached client so the next call rebuilds it.
func (r *Router) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		r.logger.Debug("ai client invalidated")
	}
	r.client = nil
	r.opts = nil
	r.lang = ""
}

func (r *Router) language(ctx context.Context) string {
	r.mu.Lock()
	lang := r.lang
	r.mu.Unlock()
	if lang != "" {
		return lang
	}
	if s, err := r.settings.Get(ctx); err == nil {
		return s.Language
	}
	return ""
}

// Close releases the history store and the publisher.
func (r *Router) Close() error {
	return errors.Join(r.history.Close(), r.publisher.Close())
}

func decode(req Request, v any) error {
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return &PayloadError{Type: req.Type, Reason: err.Error()}
	}
	return nil
}

// selection prefers the explicit text over the page context. It returns nil
// when there is no selection.
func selection(p SelectionPayload) *string {
	text := p.Text
	if text == "" && p.Context != nil {
		text = p.Context.SelectedText
	}
	if text == "" {
		return nil
	}
	return &text
}

func actionFor(t MessageType) prompt.Action {
	switch t {
	case TypeSummarize:
		return prompt.ActionSummarize
	case TypeExplain:
		return prompt.ActionExplain
	case TypeTranslate:
		return prompt.ActionTranslate
	default:
		return prompt.ActionAsk
	}
}

func typeFor(a prompt.Action) MessageType {
	switch a {
	case prompt.ActionSummarize:
		return TypeSummarize
	case prompt.ActionExplain:
		return TypeExplain
	case prompt.ActionTranslate:
		return TypeTranslate
	default:
		return TypeAsk
	}
}

func pageURL(pc *page.Context) string {
	if pc == nil {
		return ""
	}
	return pc.URL
}
