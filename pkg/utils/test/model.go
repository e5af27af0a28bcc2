package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ModelRequest is one completion request seen by a MockModel.
type ModelRequest struct {
	Path     string
	Query    string
	APIKey   string
	Stream   bool
	Messages []map[string]any
	Body     map[string]any
}

// MockModel is an http.Handler answering like an Azure OpenAI deployment.
// Every completion is the concatenation of Deltas; streaming requests get
// one frame per delta. A non-zero Status makes every request fail with
// that status and ErrorBody.
type MockModel struct {
	Deltas    []string
	Status    int
	ErrorBody string

	mu       sync.Mutex
	requests []ModelRequest
}

// NewMockModel returns a model that replies with deltas.
func NewMockModel(deltas ...string) *MockModel {
	return &MockModel{Deltas: deltas}
}

func (m *MockModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	req := ModelRequest{
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		APIKey: r.Header.Get("api-key"),
		Body:   body,
	}
	req.Stream, _ = body["stream"].(bool)
	if msgs, ok := body["messages"].([]any); ok {
		for _, msg := range msgs {
			if mm, ok := msg.(map[string]any); ok {
				req.Messages = append(req.Messages, mm)
			}
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	status, errBody := m.Status, m.ErrorBody
	m.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, errBody)
		return
	}

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, d := range m.Deltas {
			_, _ = io.WriteString(w, DeltaFrame(d))
			if flusher != nil {
				flusher.Flush()
			}
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id": "chatcmpl-test",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": strings.Join(m.Deltas, "")},
			"finish_reason": "stop",
		}},
	})
}

// Requests returns a copy of every request seen so far.
func (m *MockModel) Requests() []ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelRequest(nil), m.requests...)
}

// Fail makes subsequent requests fail.
func (m *MockModel) Fail(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = status
	m.ErrorBody = body
}

// DeltaFrame renders one streaming "data: " frame carrying content.
func DeltaFrame(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(payload) + "\n\n"
}
