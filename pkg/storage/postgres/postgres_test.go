package postgres_test

import (
	"context"
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/storage"
	"github.com/xenophobed/isastream/pkg/storage/postgres"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("ISASTREAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("ISASTREAM_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	var (
		store *postgres.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		store, err = postgres.NewStore(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		// Clean all messages before each test for isolation.
		Expect(store.DeleteAll(ctx)).To(Succeed())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("NewStore", func() {
		It("creates a store with valid connection string", func() {
			dsn := connStr()
			s, err := postgres.NewStore(context.Background(), dsn)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
		})

		It("returns an error for invalid connection string", func() {
			_, err := postgres.NewStore(context.Background(), "host=invalid port=9999 user=bad dbname=bad sslmode=disable connect_timeout=1")
			Expect(err).To(HaveOccurred())
			fmt.Fprintf(GinkgoWriter, "expected error: %v\n", err)
		})
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a message", func() {
			msg := chat.NewMessage("test content", nil)

			_, err := store.Put(ctx, "session-1", &msg)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := store.Get(ctx, msg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.ID).To(Equal(msg.ID))
			Expect(retrieved.Content).To(Equal("test content"))
			Expect(retrieved.Role).To(Equal(chat.RoleAssistant))
		})

		It("returns NotFoundError for non-existent ID", func() {
			_, err := store.Get(ctx, "nonexistent")
			Expect(err).To(HaveOccurred())

			var notFoundErr storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFoundErr))
		})

		It("is idempotent for duplicate puts", func() {
			msg := chat.NewMessage("test", nil)

			isNew, err := store.Put(ctx, "session-1", &msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			isNew, err = store.Put(ctx, "session-1", &msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			msgs, _ := store.List(ctx, "session-1")
			Expect(msgs).To(HaveLen(1))
		})

		It("rejects nil messages", func() {
			_, err := store.Put(ctx, "session-1", nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nil message"))
		})
	})

	Describe("Has", func() {
		It("returns true for existing message", func() {
			msg := chat.NewMessage("test", nil)
			store.Put(ctx, "session-1", &msg)

			exists, err := store.Has(ctx, msg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("returns false for non-existent ID", func() {
			exists, err := store.Has(ctx, "nonexistent")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("List", func() {
		It("returns session messages in arrival order", func() {
			first := chat.NewMessage("first", nil)
			second := chat.NewMessage("second", nil)

			store.Put(ctx, "session-1", &first)
			store.Put(ctx, "session-1", &second)

			msgs, err := store.List(ctx, "session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("first"))
			Expect(msgs[1].Content).To(Equal("second"))
		})

		It("scopes messages to their session", func() {
			a := chat.NewMessage("a", nil)
			b := chat.NewMessage("b", nil)

			store.Put(ctx, "session-1", &a)
			store.Put(ctx, "session-2", &b)

			msgs, err := store.List(ctx, "session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Content).To(Equal("a"))
		})
	})

	Describe("Sessions", func() {
		It("returns distinct session IDs", func() {
			a := chat.NewMessage("a", nil)
			b := chat.NewMessage("b", nil)
			c := chat.NewMessage("c", nil)

			store.Put(ctx, "session-1", &a)
			store.Put(ctx, "session-2", &b)
			store.Put(ctx, "session-1", &c)

			sessions, err := store.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(Equal([]string{"session-1", "session-2"}))
		})
	})

	Describe("Complex content", func() {
		It("stores and retrieves a message with media metadata", func() {
			msg := chat.NewMessage("image reply", []chat.MediaItem{
				{Type: chat.MediaTypeImage, URL: "http://x/a.png", Title: "pic"},
			})

			_, err := store.Put(ctx, "session-1", &msg)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := store.Get(ctx, msg.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(retrieved.Metadata.HasMedia).To(BeTrue())
			Expect(retrieved.Metadata.MediaItems).To(HaveLen(1))
			Expect(retrieved.Metadata.MediaItems[0].URL).To(Equal("http://x/a.png"))
		})
	})
})
