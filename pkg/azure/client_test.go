package azure_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cometx/pkg/azure"
	"github.com/papercomputeco/cometx/pkg/llm"
)

// recordedRequest is what the mock model saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

// mockModel is a deterministic remote model: it always answers with the
// same reply, split into fixed deltas when streaming.
type mockModel struct {
	mu       sync.Mutex
	requests []recordedRequest
	deltas   []string
}

func (m *mockModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	m.mu.Lock()
	m.requests = append(m.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		APIKey: r.Header.Get("api-key"),
		Body:   body,
	})
	m.mu.Unlock()

	if stream, _ := body["stream"].(bool); stream {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range m.deltas {
			_, _ = io.WriteString(w, deltaFrame(d))
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id": "chatcmpl-1",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": strings.Join(m.deltas, "")},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
	})
}

func (m *mockModel) recorded() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.requests...)
}

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		model    *mockModel
		server   *httptest.Server
		client   *azure.Client
		messages []llm.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		model = &mockModel{deltas: []string{"Hel", "lo, ", "world", "!"}}
		server = httptest.NewServer(model)
		client = azure.New(testConfig(server.URL + "/"))
		messages = []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "You are helpful."),
			llm.NewTextMessage(llm.RoleUser, "Say hello"),
			llm.NewTextMessage(llm.RoleAssistant, "Hi"),
			llm.NewTextMessage(llm.RoleUser, "Again, louder"),
		}
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("New", func() {
		It("never fails, even for unusable settings", func() {
			c := azure.New(azure.ConnectionConfig{})
			Expect(c).NotTo(BeNil())
			Expect(c.Config()).To(Equal(azure.ConnectionConfig{}))
		})
	})

	Describe("Complete", func() {
		It("returns the content of the first choice", func() {
			reply, err := client.Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Hello, world!"))
		})

		It("issues exactly one POST to the deployment URL", func() {
			_, err := client.Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			reqs := model.recorded()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Method).To(Equal(http.MethodPost))
			Expect(reqs[0].Path).To(Equal("/openai/deployments/gpt-4o/chat/completions"))
			Expect(reqs[0].Query).To(Equal("api-version=2024-08-01-preview"))
			Expect(reqs[0].APIKey).To(Equal("test-key"))
		})

		It("sends the messages verbatim and in order", func() {
			_, err := client.Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			sent := model.recorded()[0].Body["messages"].([]any)
			Expect(sent).To(HaveLen(len(messages)))
			for i, m := range messages {
				entry := sent[i].(map[string]any)
				Expect(entry["role"]).To(Equal(m.Role))
				Expect(entry["content"]).To(Equal(m.Content))
			}
		})

		It("applies default generation parameters", func() {
			_, err := client.Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			body := model.recorded()[0].Body
			Expect(body["temperature"]).To(BeNumerically("~", 0.7, 0.0001))
			Expect(body["max_tokens"]).To(BeNumerically("==", 4096))
			Expect(body["stream"]).To(BeFalse())
		})

		It("sends explicit generation parameters", func() {
			opts := (&llm.Options{}).WithTemperature(0.2).WithMaxTokens(256)
			_, err := client.Complete(ctx, messages, opts)
			Expect(err).NotTo(HaveOccurred())

			body := model.recorded()[0].Body
			Expect(body["temperature"]).To(BeNumerically("~", 0.2, 0.0001))
			Expect(body["max_tokens"]).To(BeNumerically("==", 256))
		})

		It("falls back to the default api version", func() {
			cfg := testConfig(server.URL)
			cfg.APIVersion = ""
			_, err := azure.New(cfg).Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(model.recorded()[0].Query).To(Equal("api-version=" + azure.DefaultAPIVersion))
		})

		Context("when the response has no usable choice", func() {
			It("returns an empty string for an empty choices array", func() {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
				}))
				defer srv.Close()

				reply, err := azure.New(testConfig(srv.URL)).Complete(ctx, messages, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(reply).To(BeEmpty())
			})

			It("returns an empty string for null content", func() {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":null}}]}`)
				}))
				defer srv.Close()

				reply, err := azure.New(testConfig(srv.URL)).Complete(ctx, messages, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(reply).To(BeEmpty())
			})
		})

		It("returns a RemoteError for malformed JSON", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `not json`)
			}))
			defer srv.Close()

			_, err := azure.New(testConfig(srv.URL)).Complete(ctx, messages, nil)
			re, ok := azure.AsRemoteError(err)
			Expect(ok).To(BeTrue())
			Expect(re.StatusCode).To(Equal(http.StatusOK))
			Expect(re.Body).To(Equal("not json"))
			Expect(re.Err).To(HaveOccurred())
		})
	})

	Describe("remote errors", func() {
		var unauthorized *httptest.Server
		var hits atomic.Int32

		BeforeEach(func() {
			hits.Store(0)
			unauthorized = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, "unauthorized")
			}))
		})

		AfterEach(func() {
			unauthorized.Close()
		})

		It("fails Complete with the status and literal body", func() {
			_, err := azure.New(testConfig(unauthorized.URL)).Complete(ctx, messages, nil)
			re, ok := azure.AsRemoteError(err)
			Expect(ok).To(BeTrue())
			Expect(re.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(re.Body).To(Equal("unauthorized"))
			Expect(re.Error()).To(ContainSubstring("401"))
		})

		It("fails CompleteStream identically before yielding anything", func() {
			stream, err := azure.New(testConfig(unauthorized.URL)).CompleteStream(ctx, messages, nil)
			Expect(stream).To(BeNil())
			re, ok := azure.AsRemoteError(err)
			Expect(ok).To(BeTrue())
			Expect(re.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(re.Body).To(Equal("unauthorized"))
		})

		It("does not retry", func() {
			_, _ = azure.New(testConfig(unauthorized.URL)).Complete(ctx, messages, nil)
			Expect(hits.Load()).To(Equal(int32(1)))
		})
	})

	Describe("configuration errors", func() {
		DescribeTable("are reported before any network activity",
			func(mutate func(*azure.ConnectionConfig), field string) {
				cfg := testConfig(server.URL)
				mutate(&cfg)
				c := azure.New(cfg)

				_, err := c.Complete(ctx, messages, nil)
				var ce *azure.ConfigurationError
				Expect(errors.As(err, &ce)).To(BeTrue())
				Expect(ce.Field).To(Equal(field))

				stream, err := c.CompleteStream(ctx, messages, nil)
				Expect(stream).To(BeNil())
				Expect(azure.IsConfigurationError(err)).To(BeTrue())

				Expect(model.recorded()).To(BeEmpty())
			},
			Entry("empty api key", func(c *azure.ConnectionConfig) { c.APIKey = "" }, "api key"),
			Entry("blank api key", func(c *azure.ConnectionConfig) { c.APIKey = "   " }, "api key"),
			Entry("empty endpoint", func(c *azure.ConnectionConfig) { c.Endpoint = "" }, "endpoint"),
			Entry("endpoint without scheme", func(c *azure.ConnectionConfig) { c.Endpoint = "example.com" }, "endpoint"),
			Entry("unsupported scheme", func(c *azure.ConnectionConfig) { c.Endpoint = "ftp://example.com" }, "endpoint"),
			Entry("unparseable endpoint", func(c *azure.ConnectionConfig) { c.Endpoint = "http://[::1" }, "endpoint"),
			Entry("empty deployment", func(c *azure.ConnectionConfig) { c.Deployment = "" }, "deployment"),
		)
	})

	Describe("caller input", func() {
		It("rejects an empty conversation", func() {
			_, err := client.Complete(ctx, nil, nil)
			Expect(err).To(MatchError(azure.ErrNoMessages))

			_, err = client.CompleteStream(ctx, []llm.Message{}, nil)
			Expect(err).To(MatchError(azure.ErrNoMessages))
			Expect(model.recorded()).To(BeEmpty())
		})

		It("rejects out of range options", func() {
			_, err := client.Complete(ctx, messages, (&llm.Options{}).WithTemperature(2))
			var optErr *llm.OptionsError
			Expect(errors.As(err, &optErr)).To(BeTrue())

			_, err = client.CompleteStream(ctx, messages, (&llm.Options{}).WithMaxTokens(0))
			Expect(errors.As(err, &optErr)).To(BeTrue())
			Expect(model.recorded()).To(BeEmpty())
		})
	})

	Describe("transport errors", func() {
		It("wraps connection failures", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			_, err := azure.New(testConfig(url)).Complete(ctx, messages, nil)
			Expect(azure.IsTransportError(err)).To(BeTrue())

			_, err = azure.New(testConfig(url)).CompleteStream(ctx, messages, nil)
			Expect(azure.IsTransportError(err)).To(BeTrue())
		})

		It("honours context cancellation", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := client.Complete(cancelled, messages, nil)
			Expect(azure.IsTransportError(err)).To(BeTrue())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("CompleteStream", func() {
		It("sets the streaming flag", func() {
			stream, err := client.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = drain(stream)
			Expect(err).NotTo(HaveOccurred())

			body := model.recorded()[0].Body
			Expect(body["stream"]).To(BeTrue())
			Expect(body["temperature"]).To(BeNumerically("~", 0.7, 0.0001))
			Expect(body["max_tokens"]).To(BeNumerically("==", 4096))
		})

		It("yields the deltas in order", func() {
			stream, err := client.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			deltas, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(deltas).To(Equal([]string{"Hel", "lo, ", "world", "!"}))
		})

		It("concatenates to the same text as Complete", func() {
			full, err := client.Complete(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			stream, err := client.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			streamed, err := stream.Collect()
			Expect(err).NotTo(HaveOccurred())

			Expect(streamed).To(Equal(full))
		})
	})

	Describe("stream decoding", func() {
		It("decodes a stream delivered in one chunk", func() {
			body := "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n" +
				"data: [DONE]\n"
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(io.NopCloser(strings.NewReader(body))), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(drain(stream)).To(Equal([]string{"He", "llo"}))
		})

		It("decodes the same stream delivered byte by byte", func() {
			body := "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n" +
				"data: [DONE]\n"
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(io.NopCloser(iotest.OneByteReader(strings.NewReader(body)))), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(drain(stream)).To(Equal([]string{"He", "llo"}))
		})

		It("drops malformed frames without failing", func() {
			body := "data: not-json\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
				"data: [DONE]\n"
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(io.NopCloser(strings.NewReader(body))), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(drain(stream)).To(Equal([]string{"ok"}))
		})

		It("skips frames without content", func() {
			body := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
				"data: {\"choices\":[]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n" +
				": heartbeat\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n" +
				"data: [DONE]\n"
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(io.NopCloser(strings.NewReader(body))), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(drain(stream)).To(Equal([]string{"x"}))
		})

		It("ends normally at the sentinel", func() {
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(io.NopCloser(strings.NewReader("data: [DONE]\n"))), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = stream.Next()
			Expect(err).To(MatchError(io.EOF))
			_, err = stream.Next()
			Expect(err).To(MatchError(io.EOF))
		})

		It("surfaces a mid-stream read failure", func() {
			boom := errors.New("connection reset by peer")
			body := io.MultiReader(strings.NewReader(deltaFrame("partial")), iotest.ErrReader(boom))
			tb := &trackingBody{Reader: body}
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(tb), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			deltas, err := drain(stream)
			Expect(deltas).To(Equal([]string{"partial"}))
			Expect(azure.IsTransportError(err)).To(BeTrue())
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(tb.closed.Load()).To(BeTrue())
		})

		It("fails when the response has no body", func() {
			c := clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(http.NoBody), nil
			}))

			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(stream).To(BeNil())
			Expect(azure.IsTransportError(err)).To(BeTrue())
			Expect(errors.Is(err, azure.ErrNoResponseBody)).To(BeTrue())
		})
	})

	Describe("resource release", func() {
		var tb *trackingBody
		var c *azure.Client

		BeforeEach(func() {
			tb = &trackingBody{Reader: strings.NewReader(sseBody("one", "two", "three"))}
			c = clientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
				return streamResponse(tb), nil
			}))
		})

		It("closes the body when abandoned after the first element", func() {
			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			for delta, err := range stream.All() {
				Expect(err).NotTo(HaveOccurred())
				Expect(delta).To(Equal("one"))
				break
			}
			Expect(tb.closed.Load()).To(BeTrue())
		})

		It("closes the body on explicit Close", func() {
			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			first, err := stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal("one"))

			Expect(stream.Close()).To(Succeed())
			Expect(stream.Close()).To(Succeed())
			Expect(tb.closed.Load()).To(BeTrue())

			_, err = stream.Next()
			Expect(err).To(MatchError(azure.ErrStreamClosed))
		})

		It("closes the body on normal completion", func() {
			stream, err := c.CompleteStream(ctx, messages, nil)
			Expect(err).NotTo(HaveOccurred())

			text, err := stream.Collect()
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("onetwothree"))
			Expect(tb.closed.Load()).To(BeTrue())
		})
	})
})
