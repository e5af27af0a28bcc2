package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cometx/pkg/history/inmemory"
	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/logger"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/settings"
	testutils "github.com/papercomputeco/cometx/pkg/utils/test"
)

func jsonRequest(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, r)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

func readBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return body
}

// dataLines returns the payloads of the "data: " lines of an SSE body.
func dataLines(body []byte) []string {
	var out []string
	for line := range strings.SplitSeq(string(body), "\n") {
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			out = append(out, payload)
		}
	}
	return out
}

var _ = Describe("Server", func() {
	var (
		model  *testutils.MockModel
		remote *httptest.Server
		store  *testutils.SettingsStore
		r      *router.Router
		server *Server
	)

	BeforeEach(func() {
		model = testutils.NewMockModel("Hel", "lo")
		remote = httptest.NewServer(model)
		store = testutils.NewSettingsStore(remote.URL, "test-key")
		r = router.New(store,
			router.WithHistory(inmemory.NewStore()),
			router.WithExtractor(&testutils.StaticExtractor{Page: &page.Context{Title: "T", Content: "C"}}),
		)
		server = NewServer(Config{ListenAddr: ":0"}, r, logger.Nop())
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
		remote.Close()
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(readBody(resp))).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/message", func() {
		It("runs a chat envelope", func() {
			payload, _ := json.Marshal(router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			})
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/message",
				router.Request{Type: router.TypeChat, Payload: payload}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				Success bool              `json:"success"`
				Data    router.ChatResult `json:"data"`
			}
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Success).To(BeTrue())
			Expect(out.Data.Content).To(Equal("Hello"))
			Expect(out.Data.ConversationID).NotTo(BeEmpty())
		})

		It("reports unknown types in the envelope", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/message", router.Request{Type: "NOPE"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var out router.Response
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Success).To(BeFalse())
			Expect(out.Error).To(Equal("Unknown message type: NOPE"))
		})

		It("passes remote statuses through", func() {
			model.Fail(http.StatusUnauthorized, "unauthorized")
			payload, _ := json.Marshal(router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			})
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/message",
				router.Request{Type: router.TypeChat, Payload: payload}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
		})

		It("rejects a body that is not JSON", func() {
			req, _ := http.NewRequest(http.MethodPost, "/v1/message", strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects bodies not declared as JSON", func() {
			req, _ := http.NewRequest(http.MethodPost, "/v1/message", strings.NewReader(`{"type":"GET_SETTINGS"}`))
			req.Header.Set("Content-Type", "text/plain")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnsupportedMediaType))
		})
	})

	Describe("POST /v1/chat/stream", func() {
		It("re-emits deltas as server-sent events", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/chat/stream", router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			}), 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			lines := dataLines(readBody(resp))
			Expect(lines).To(HaveLen(4))
			Expect(lines[0]).To(ContainSubstring(`"conversationId"`))
			Expect(lines[1:]).To(Equal([]string{`{"content":"Hel"}`, `{"content":"lo"}`, `[DONE]`}))
		})

		It("maps an upstream failure before the first delta to a status", func() {
			model.Fail(http.StatusTooManyRequests, "slow down")
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/chat/stream", router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))

			var out llm.ErrorResponse
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Error).To(ContainSubstring("slow down"))
		})

		It("reports a missing key as unavailable", func() {
			r2 := router.New(testutils.NewSettingsStore(remote.URL, ""))
			server = NewServer(Config{}, r2, logger.Nop())

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/chat/stream", router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Describe("POST /v1/actions/:action/stream", func() {
		It("streams a summary of the page", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/actions/summarize/stream",
				router.ActionPayload{PageURL: "https://example.com"}), 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(dataLines(readBody(resp))).To(ContainElement(`[DONE]`))
		})

		It("returns 404 for unknown actions", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/actions/dance/stream", router.ActionPayload{Text: "x"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("settings", func() {
		It("never echoes the api key", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/settings", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := readBody(resp)
			Expect(string(body)).NotTo(ContainSubstring("test-key"))

			var out struct {
				Settings settings.Settings `json:"settings"`
				HasKey   bool              `json:"hasKey"`
			}
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.HasKey).To(BeTrue())
			Expect(out.Settings.DefaultModel).To(Equal("gpt-4o"))
		})

		It("saves settings and keeps the stored key", func() {
			update := testutils.NewSettingsStore(remote.URL, "")
			s, _ := update.Get(context.Background())
			s.Theme = "light"

			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/settings", s))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(readBody(resp))).NotTo(ContainSubstring("test-key"))

			saved, err := store.Get(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Theme).To(Equal("light"))
			Expect(saved.APIKey).To(Equal("test-key"))
		})

		It("rejects invalid settings", func() {
			s, _ := store.Get(context.Background())
			s.Language = "fr"
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/settings", s))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("keeps the key on its endpoint when a save moves the endpoint without one", func() {
			attacker := testutils.NewMockModel("leaked")
			evil := httptest.NewServer(attacker)
			defer evil.Close()

			s, _ := store.Get(context.Background())
			moved := s.Redacted()
			moved.APIEndpoint = evil.URL

			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/settings", moved))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var out llm.ErrorResponse
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Error).To(Equal(settings.ErrKeyRequired.Error()))

			payload, _ := json.Marshal(router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			})
			resp, err = server.app.Test(jsonRequest(http.MethodPost, "/v1/message",
				router.Request{Type: router.TypeChat, Payload: payload}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(attacker.Requests()).To(BeEmpty())
			Expect(model.Requests()).To(HaveLen(1))
		})

		It("reports storage failures as server errors", func() {
			store.SetErr = errors.New("disk full")
			s, _ := store.Get(context.Background())

			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/settings", s.Redacted()))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})

		It("does not build a client to report hasKey", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/settings", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			next := testutils.NewMockModel("fresh")
			nextRemote := httptest.NewServer(next)
			defer nextRemote.Close()
			s, _ := store.Get(context.Background())
			s.APIEndpoint = nextRemote.URL
			Expect(store.Set(context.Background(), s)).To(Succeed())

			payload, _ := json.Marshal(router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			})
			resp, err = server.app.Test(jsonRequest(http.MethodPost, "/v1/message",
				router.Request{Type: router.TypeChat, Payload: payload}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(next.Requests()).To(HaveLen(1))
			Expect(model.Requests()).To(BeEmpty())
		})
	})

	Describe("origins", func() {
		withOrigin := func(req *http.Request, origin string) *http.Request {
			req.Header.Set("Origin", origin)
			return req
		}

		It("refuses web pages", func() {
			req, _ := http.NewRequest(http.MethodPut, "/v1/settings", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "text/plain")
			resp, err := server.app.Test(withOrigin(req, "https://evil.example"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusForbidden))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("admits browser extensions and echoes their origin", func() {
			const ext = "chrome-extension://abcdefghijklmnop"
			resp, err := server.app.Test(withOrigin(jsonRequest(http.MethodGet, "/v1/models", nil), ext))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal(ext))
		})

		It("admits requests without an origin", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/models", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("honours a configured allow list", func() {
			server = NewServer(Config{AllowOrigins: "http://localhost:3000"}, r, logger.Nop())

			resp, err := server.app.Test(withOrigin(jsonRequest(http.MethodGet, "/v1/models", nil), "http://localhost:3000"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp, err = server.app.Test(withOrigin(jsonRequest(http.MethodGet, "/v1/models", nil), "chrome-extension://abc"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusForbidden))
		})
	})

	DescribeTable("origin policy",
		func(list, origin string, want bool) {
			Expect(parseOrigins(list).allows(origin)).To(Equal(want))
		},
		Entry("extension scheme", DefaultAllowOrigins, "moz-extension://1234-abcd", true),
		Entry("web page", DefaultAllowOrigins, "https://example.com", false),
		Entry("bare scheme", DefaultAllowOrigins, "chrome-extension://", false),
		Entry("exact match ignores case and trailing slash", "http://LOCALHOST:3000/", "http://localhost:3000", true),
		Entry("wildcard", "*", "https://anything.example", true),
		Entry("empty list", "", "chrome-extension://abc", false),
	)

	Describe("GET /v1/models", func() {
		It("lists the deployment catalog", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/models", nil))
			Expect(err).NotTo(HaveOccurred())

			var out ModelsResponse
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Models).To(Equal(llm.Deployments))
		})
	})

	Describe("conversations", func() {
		var convID string

		BeforeEach(func() {
			payload, _ := json.Marshal(router.ChatPayload{
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "remember me")},
			})
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/message",
				router.Request{Type: router.TypeChat, Payload: payload}))
			Expect(err).NotTo(HaveOccurred())

			var out struct {
				Data router.ChatResult `json:"data"`
			}
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			convID = out.Data.ConversationID
		})

		It("lists stored conversations", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/conversations", nil))
			Expect(err).NotTo(HaveOccurred())

			var out struct {
				Count         int `json:"count"`
				Conversations []struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"conversations"`
			}
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Conversations[0].ID).To(Equal(convID))
			Expect(out.Conversations[0].Title).To(Equal("remember me"))
		})

		It("returns one conversation with its messages", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/conversations/"+convID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			Expect(json.Unmarshal(readBody(resp), &out)).To(Succeed())
			Expect(out.Messages).To(HaveLen(2))
			Expect(out.Messages[1].Content).To(Equal("Hello"))
		})

		It("deletes a conversation", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodDelete, "/v1/conversations/"+convID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			resp, err = server.app.Test(jsonRequest(http.MethodGet, "/v1/conversations/"+convID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("MCP", func() {
		It("is not mounted by default", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/mcp", map[string]any{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("is mounted at /mcp when enabled", func() {
			server = NewServer(Config{MCP: true}, r, logger.Nop())

			req := jsonRequest(http.MethodPost, "/mcp", map[string]any{
				"jsonrpc": "2.0",
				"id":      1,
				"method":  "initialize",
				"params": map[string]any{
					"protocolVersion": "2025-06-18",
					"capabilities":    map[string]any{},
					"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
				},
			})
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).NotTo(Equal(fiber.StatusNotFound))
		})
	})
})
