package stream

import "github.com/xenophobed/isastream/pkg/chat"

// Status is a side-channel progress update: workflow node transitions and
// tool lifecycle notifications.
type Status struct {
	// Status is the backend-reported state, e.g. "running", "completed",
	// "executing".
	Status string

	// Type distinguishes the status source: "workflow" or "tool".
	Type string

	// Node is the workflow node name for workflow statuses, or the tool
	// action name for tool statuses. May be empty.
	Node string
}

// Status type values.
const (
	StatusTypeWorkflow = "workflow"
	StatusTypeTool     = "tool"
)

// Sink receives the decoder's output. One method per event kind replaces the
// stringly-typed listener registry of earlier incarnations: consumers get
// compile-time checking and there is nothing to unregister.
//
// All methods are invoked synchronously from the decode loop, in stream
// order. Implementations that need to do slow work should hand off to their
// own goroutine or queue.
type Sink interface {
	// StreamingStart fires exactly once per message, when accumulated
	// tokens first cross the scaffold/content boundary.
	StreamingStart()

	// TokenReceived delivers a newly visible content delta, already
	// un-escaped. Concatenating all deltas yields the final message text.
	TokenReceived(content string)

	// StreamingEnd fires once when the message is complete, before
	// MessageReceived.
	StreamingEnd()

	// TypingChanged mirrors StreamingStart/StreamingEnd as a boolean
	// convenience for typing indicators.
	TypingChanged(typing bool)

	// StreamingStatus delivers workflow and tool progress updates.
	StreamingStatus(status Status)

	// ToolResult delivers a recovered tool result payload.
	ToolResult(result chat.ToolResult)

	// ToolImagesFound fires when a tool result carries a non-empty
	// image_urls array.
	ToolImagesFound(urls []string, action string, data map[string]any)

	// MessageReceived delivers the final immutable message record, exactly
	// once per completed stream. Never fires for aborted streams.
	MessageReceived(msg chat.Message)

	// StreamError surfaces a terminal failure, exactly once. Content-shape
	// anomalies never reach this; only transport errors and cancellation do.
	StreamError(err error)
}

// NopSink discards every event. Useful as an embedding base so consumers
// only override the methods they care about.
type NopSink struct{}

func (NopSink) StreamingStart()                                  {}
func (NopSink) TokenReceived(string)                             {}
func (NopSink) StreamingEnd()                                    {}
func (NopSink) TypingChanged(bool)                               {}
func (NopSink) StreamingStatus(Status)                           {}
func (NopSink) ToolResult(chat.ToolResult)                       {}
func (NopSink) ToolImagesFound([]string, string, map[string]any) {}
func (NopSink) MessageReceived(chat.Message)                     {}
func (NopSink) StreamError(error)                                {}

var _ Sink = NopSink{}
var _ Sink = SinkFuncs{}

// SinkFuncs adapts per-event callbacks to the Sink interface. Nil fields
// drop their events.
type SinkFuncs struct {
	OnStreamingStart  func()
	OnTokenReceived   func(content string)
	OnStreamingEnd    func()
	OnTypingChanged   func(typing bool)
	OnStreamingStatus func(status Status)
	OnToolResult      func(result chat.ToolResult)
	OnToolImagesFound func(urls []string, action string, data map[string]any)
	OnMessageReceived func(msg chat.Message)
	OnStreamError     func(err error)
}

func (s SinkFuncs) StreamingStart() {
	if s.OnStreamingStart != nil {
		s.OnStreamingStart()
	}
}

func (s SinkFuncs) TokenReceived(content string) {
	if s.OnTokenReceived != nil {
		s.OnTokenReceived(content)
	}
}

func (s SinkFuncs) StreamingEnd() {
	if s.OnStreamingEnd != nil {
		s.OnStreamingEnd()
	}
}

func (s SinkFuncs) TypingChanged(typing bool) {
	if s.OnTypingChanged != nil {
		s.OnTypingChanged(typing)
	}
}

func (s SinkFuncs) StreamingStatus(status Status) {
	if s.OnStreamingStatus != nil {
		s.OnStreamingStatus(status)
	}
}

func (s SinkFuncs) ToolResult(result chat.ToolResult) {
	if s.OnToolResult != nil {
		s.OnToolResult(result)
	}
}

func (s SinkFuncs) ToolImagesFound(urls []string, action string, data map[string]any) {
	if s.OnToolImagesFound != nil {
		s.OnToolImagesFound(urls, action, data)
	}
}

func (s SinkFuncs) MessageReceived(msg chat.Message) {
	if s.OnMessageReceived != nil {
		s.OnMessageReceived(msg)
	}
}

func (s SinkFuncs) StreamError(err error) {
	if s.OnStreamError != nil {
		s.OnStreamError(err)
	}
}
