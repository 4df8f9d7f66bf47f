package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/backend"
)

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("POSTs the chat request and returns the stream body", func() {
		var gotReq backend.ChatRequest
		var gotPath, gotAccept string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAccept = r.Header.Get("Accept")
			Expect(json.NewDecoder(r.Body).Decode(&gotReq)).To(Succeed())

			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, "data: {\"type\":\"start\"}\n")
			io.WriteString(w, "data: [DONE]\n")
		}))
		defer server.Close()

		client := backend.NewClient(server.URL, zap.NewNop())
		body, err := client.Stream(ctx, "session-1", "hello")
		Expect(err).NotTo(HaveOccurred())
		defer body.Close()

		raw, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring("[DONE]"))

		Expect(gotPath).To(Equal("/api/chat/stream"))
		Expect(gotAccept).To(Equal("text/event-stream"))
		Expect(gotReq.SessionID).To(Equal("session-1"))
		Expect(gotReq.Message).To(Equal("hello"))
		Expect(gotReq.Stream).To(BeTrue())
	})

	It("returns a StatusError for non-200 responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream unavailable")
		}))
		defer server.Close()

		client := backend.NewClient(server.URL, zap.NewNop())
		_, err := client.Stream(ctx, "session-1", "hello")
		Expect(err).To(HaveOccurred())

		var statusErr *backend.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.Code).To(Equal(http.StatusBadGateway))
		Expect(statusErr.Body).To(ContainSubstring("upstream unavailable"))
	})

	It("aborts when the context is cancelled", func() {
		blocked := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			<-blocked
		}))
		defer server.Close()
		defer close(blocked)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		client := backend.NewClient(server.URL, zap.NewNop())
		_, err := client.Stream(cancelled, "session-1", "hello")
		Expect(err).To(MatchError(context.Canceled))
	})

	It("surfaces connection failures", func() {
		client := backend.NewClient("http://127.0.0.1:1", zap.NewNop())
		_, err := client.Stream(ctx, "session-1", "hello")
		Expect(err).To(HaveOccurred())
	})
})
