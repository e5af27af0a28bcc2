package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/llm"
)

// DescribeHistoryStore registers the behaviour every history.Store must
// share. newStore is called once per spec.
func DescribeHistoryStore(newStore func() history.Store) bool {
	return Describe("history.Store behaviour", func() {
		var (
			ctx   context.Context
			store history.Store
		)

		BeforeEach(func() {
			ctx = context.Background()
			store = newStore()
		})

		AfterEach(func() {
			Expect(store.Close()).To(Succeed())
		})

		appendMsgs := func(convID string, msgs ...history.Message) *history.Conversation {
			conv, err := store.Append(ctx, history.Record{ConversationID: convID, PageURL: "https://example.com", Messages: msgs})
			Expect(err).NotTo(HaveOccurred())
			return conv
		}

		It("starts a conversation with a generated ID and derived title", func() {
			conv := appendMsgs("",
				history.NewMessage(llm.RoleUser, "What is a goroutine?"),
				history.NewMessage(llm.RoleAssistant, "A lightweight thread."),
			)

			Expect(conv.ID).NotTo(BeEmpty())
			Expect(conv.Title).To(Equal("What is a goroutine?"))
			Expect(conv.PageURL).To(Equal("https://example.com"))
			Expect(conv.MessageCount).To(Equal(2))
			Expect(conv.Messages).To(BeEmpty())
			Expect(conv.CreatedAt).NotTo(BeZero())
		})

		It("appends to an existing conversation in order", func() {
			conv := appendMsgs("", history.NewMessage(llm.RoleUser, "one"))
			conv = appendMsgs(conv.ID,
				history.NewMessage(llm.RoleAssistant, "two"),
				history.NewMessage(llm.RoleUser, "three"),
			)
			Expect(conv.MessageCount).To(Equal(3))
			Expect(conv.Title).To(Equal("one"))

			got, err := store.Get(ctx, conv.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ToLLM()).To(Equal([]llm.Message{
				llm.NewTextMessage(llm.RoleUser, "one"),
				llm.NewTextMessage(llm.RoleAssistant, "two"),
				llm.NewTextMessage(llm.RoleUser, "three"),
			}))
			Expect(got.Messages[0].Status).To(Equal(history.StatusComplete))
			Expect(got.Messages[0].ID).NotTo(BeEmpty())
		})

		It("creates a conversation under a caller supplied ID", func() {
			conv := appendMsgs("client-chosen-id", history.Message{Role: llm.RoleUser, Content: "hi"})
			Expect(conv.ID).To(Equal("client-chosen-id"))

			got, err := store.Get(ctx, "client-chosen-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Messages).To(HaveLen(1))
			Expect(got.Messages[0].ID).NotTo(BeEmpty())
			Expect(got.Messages[0].Timestamp).NotTo(BeZero())
		})

		It("rejects empty records", func() {
			_, err := store.Append(ctx, history.Record{})
			Expect(err).To(MatchError(history.ErrNoMessages))
		})

		It("lists the most recently updated conversation first", func() {
			first := appendMsgs("", history.NewMessage(llm.RoleUser, "first"))
			time.Sleep(5 * time.Millisecond)
			second := appendMsgs("", history.NewMessage(llm.RoleUser, "second"))
			time.Sleep(5 * time.Millisecond)
			appendMsgs(first.ID, history.NewMessage(llm.RoleAssistant, "reply"))

			list, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal(first.ID))
			Expect(list[0].MessageCount).To(Equal(2))
			Expect(list[0].Messages).To(BeEmpty())
			Expect(list[1].ID).To(Equal(second.ID))
		})

		It("returns an empty list for a fresh store", func() {
			list, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).NotTo(BeNil())
			Expect(list).To(BeEmpty())
		})

		It("deletes conversations", func() {
			conv := appendMsgs("", history.NewMessage(llm.RoleUser, "bye"))
			Expect(store.Delete(ctx, conv.ID)).To(Succeed())

			_, err := store.Get(ctx, conv.ID)
			Expect(history.IsNotFound(err)).To(BeTrue())

			err = store.Delete(ctx, conv.ID)
			Expect(err).To(MatchError(history.NotFoundError{ID: conv.ID}))
		})

		It("reports missing conversations", func() {
			_, err := store.Get(ctx, "nope")
			Expect(err).To(MatchError("conversation not found: nope"))
		})
	})
}
