package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/chat"
)

// recordingSink captures every decoder emission for assertion.
type recordingSink struct {
	starts   int
	deltas   []string
	ends     int
	typing   []bool
	statuses []Status
	results  []chat.ToolResult
	images   [][]string
	messages []chat.Message
	errs     []error
}

func (r *recordingSink) StreamingStart()                { r.starts++ }
func (r *recordingSink) TokenReceived(content string)   { r.deltas = append(r.deltas, content) }
func (r *recordingSink) StreamingEnd()                  { r.ends++ }
func (r *recordingSink) TypingChanged(t bool)           { r.typing = append(r.typing, t) }
func (r *recordingSink) StreamingStatus(s Status)       { r.statuses = append(r.statuses, s) }
func (r *recordingSink) ToolResult(res chat.ToolResult) { r.results = append(r.results, res) }
func (r *recordingSink) ToolImagesFound(urls []string, _ string, _ map[string]any) {
	r.images = append(r.images, urls)
}
func (r *recordingSink) MessageReceived(m chat.Message) { r.messages = append(r.messages, m) }
func (r *recordingSink) StreamError(err error)          { r.errs = append(r.errs, err) }

// tokenFrame wraps a token fragment in the custom_event wire envelope.
func tokenFrame(token string) string {
	return fmt.Sprintf(`{"type":"custom_event","metadata":{"raw_chunk":{"response_token":{"token":%q}}}}`, token)
}

// body joins payloads into an SSE stream.
func body(payloads ...string) io.Reader {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n")
	}
	return strings.NewReader(b.String())
}

// failingBody yields its payloads, then a read error.
type failingBody struct {
	r    io.Reader
	err  error
	done bool
}

func (f *failingBody) Read(p []byte) (int, error) {
	if !f.done {
		n, err := f.r.Read(p)
		if err == io.EOF {
			f.done = true
			return n, nil
		}
		return n, err
	}
	return 0, f.err
}

var _ = Describe("Decoder", func() {
	var (
		sink *recordingSink
		ctx  context.Context
	)

	BeforeEach(func() {
		sink = &recordingSink{}
		ctx = context.Background()
	})

	run := func(r io.Reader) error {
		d := NewDecoder(sink, zap.NewNop())
		return d.Run(ctx, r)
	}

	Describe("the streaming path", func() {
		It("decodes the documented token sequence into deltas and a message", func() {
			err := run(body(
				`{"type":"start"}`,
				tokenFrame(`{"User: `),
				tokenFrame(`hi\n\nAssistant: `),
				tokenFrame(`Hello`),
				tokenFrame(`!`),
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.starts).To(Equal(1))
			Expect(sink.deltas).To(Equal([]string{"Hello", "!"}))
			Expect(sink.ends).To(Equal(1))
			Expect(sink.typing).To(Equal([]bool{true, false}))
			Expect(sink.errs).To(BeEmpty())

			Expect(sink.messages).To(HaveLen(1))
			msg := sink.messages[0]
			Expect(msg.Content).To(Equal("Hello!"))
			Expect(msg.Role).To(Equal(chat.RoleAssistant))
			Expect(msg.ID).NotTo(BeEmpty())
			Expect(msg.Metadata.ContentTypes).To(Equal([]string{"text"}))
			Expect(msg.Metadata.HasMedia).To(BeFalse())
		})

		It("skips the fallback when a content event follows streamed tokens", func() {
			err := run(body(
				tokenFrame(`{"User: q\n\nAssistant: streamed answer`),
				`{"type":"content","content":"full blob that would duplicate"}`,
				`{"type":"end"}`,
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(Equal("streamed answer"))
			Expect(sink.ends).To(Equal(1))
		})

		It("extracts media from streamed markdown", func() {
			err := run(body(
				tokenFrame(`{"User: x\n\nAssistant: here ![pic](http://x/a.png)`),
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Metadata.HasMedia).To(BeTrue())
			Expect(sink.messages[0].Metadata.MediaItems).To(HaveLen(1))
		})
	})

	Describe("the fallback path", func() {
		It("resolves a content event when no tokens crossed the boundary", func() {
			err := run(body(
				`{"type":"start"}`,
				`{"type":"content","content":{"formatted_content":"Hi there"}}`,
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.starts).To(BeZero())
			Expect(sink.deltas).To(BeEmpty())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(Equal("Hi there"))
			Expect(sink.messages[0].Metadata.MediaItems).To(BeEmpty())
		})

		It("assembles an empty message when the stream carried no content", func() {
			err := run(body(sseDone))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(BeEmpty())
		})

		It("finishes on EOF without a done sentinel", func() {
			err := run(body(`{"type":"content","content":"partial delivery"}`))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(Equal("partial delivery"))
		})
	})

	Describe("side channels", func() {
		It("forwards workflow and tool status updates", func() {
			err := run(body(
				`{"type":"node_update","node":"planner","status":"running"}`,
				`{"type":"tool_executing","action":"image_gen"}`,
				`{"type":"tool_completed","action":"image_gen"}`,
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.statuses).To(Equal([]Status{
				{Status: "running", Type: StatusTypeWorkflow, Node: "planner"},
				{Status: "executing", Type: StatusTypeTool, Node: "image_gen"},
				{Status: "completed", Type: StatusTypeTool, Node: "image_gen"},
			}))
		})

		It("recovers a split tool result and reports its images", func() {
			content := "ToolMessage: {\"action\":\"search\",\"status\":\"success\",\"data\":{\"image_urls\":[\"http://x/a.png\"]}\n}"
			frame := fmt.Sprintf(`{"type":"tool_result_msg","content":%q}`, content)

			err := run(body(frame, sseDone))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.results).To(HaveLen(1))
			Expect(sink.results[0].Action).To(Equal("search"))
			Expect(sink.results[0].Success).To(BeTrue())
			Expect(sink.images).To(Equal([][]string{{"http://x/a.png"}}))
		})

		It("survives a malformed tool result and keeps processing", func() {
			err := run(body(
				`{"type":"tool_result_msg","content":"ToolMessage: {broken"}`,
				`{"type":"content","content":"still here"}`,
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.results).To(BeEmpty())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(Equal("still here"))
		})

		It("survives unparsable and unknown frames", func() {
			err := run(body(
				`{not json`,
				`{"type":"billing_update"}`,
				`{"type":"content","content":"fine"}`,
				sseDone,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(sink.messages).To(HaveLen(1))
			Expect(sink.messages[0].Content).To(Equal("fine"))
		})
	})

	Describe("terminal failures", func() {
		It("surfaces a transport error exactly once and assembles nothing", func() {
			boom := errors.New("connection reset by peer")
			r := &failingBody{
				r:   body(tokenFrame(`{"User: x\n\nAssistant: partial`)),
				err: boom,
			}

			err := run(r)

			Expect(err).To(MatchError(boom))
			Expect(sink.errs).To(HaveLen(1))
			Expect(sink.messages).To(BeEmpty())
			Expect(sink.ends).To(BeZero())
		})

		It("stops on cancellation without assembling a message", func() {
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cancelled

			err := run(body(tokenFrame(`{"User: x\n\nAssistant: partial`), sseDone))

			Expect(err).To(MatchError(context.Canceled))
			Expect(sink.errs).To(HaveLen(1))
			Expect(sink.errs[0]).To(MatchError(context.Canceled))
			Expect(sink.messages).To(BeEmpty())
		})
	})

	Describe("event ordering at completion", func() {
		It("emits streaming end before the message record", func() {
			var order []string
			d := NewDecoder(SinkFuncs{
				OnStreamingEnd:    func() { order = append(order, "end") },
				OnMessageReceived: func(chat.Message) { order = append(order, "message") },
			}, zap.NewNop())

			err := d.Run(ctx, body(`{"type":"content","content":"x"}`, sseDone))
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"end", "message"}))
		})
	})
})

const sseDone = "[DONE]"
