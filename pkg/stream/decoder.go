package stream

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/sse"
)

// Decoder drives one decode cycle: it reads SSE frames from a response body,
// classifies them, accumulates token fragments, recovers tool results, and
// assembles the final message record.
//
// A Decoder holds the accumulation state for exactly one in-flight message
// and must not be reused or shared across requests; create a fresh one per
// stream. All sink callbacks fire synchronously from Run, in stream order;
// the loop never reads ahead of the consumer.
type Decoder struct {
	sink    Sink
	logger  *zap.Logger
	capture io.Writer

	acc         *accumulator
	lastContent string
	hasContent  bool
	finished    bool
	errored     bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithCapture mirrors all raw stream lines to w, producing a capture file
// replayable by the replay server.
func WithCapture(w io.Writer) Option {
	return func(d *Decoder) {
		d.capture = w
	}
}

// NewDecoder creates a decoder for a single stream. A nil sink discards all
// events; a nil logger disables diagnostics.
func NewDecoder(sink Sink, logger *zap.Logger, opts ...Option) *Decoder {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Decoder{
		sink:   sink,
		logger: logger,
		acc:    newAccumulator(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run consumes the stream until the done sentinel, EOF, a transport error,
// or cancellation. Each frame is fully classified and emitted before the
// next read, so delivery order matches stream order and backpressure is
// implicit.
//
// Transport errors and cancellation are terminal: they surface exactly once
// through the sink's error channel and as the return value, and no message
// record is assembled. Content-shape anomalies (unparsable frames, broken
// tool results) are logged and absorbed.
//
// Cancellation is observed between frames; while blocked in a read it relies
// on the transport tying the body to ctx, which http.NewRequestWithContext
// does.
func (d *Decoder) Run(ctx context.Context, body io.Reader) error {
	var reader *sse.Reader
	if d.capture != nil {
		reader = sse.NewTeeReader(body, d.capture)
	} else {
		reader = sse.NewReader(body)
	}

	for {
		if err := ctx.Err(); err != nil {
			return d.abort(err)
		}

		payload, err := reader.Next()
		if err != nil {
			// A body closed by cancellation reports a read error; surface
			// the cancellation itself, not the transport artifact.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return d.abort(ctxErr)
			}
			return d.abort(fmt.Errorf("reading stream: %w", err))
		}

		if payload == nil || payload.Done {
			d.finish()
			return nil
		}

		d.dispatch(payload.Raw)
	}
}

// dispatch routes one classified frame.
func (d *Decoder) dispatch(raw string) {
	if d.finished {
		// Frames after an explicit end event carry nothing for this message.
		return
	}

	ev, ok := classify(raw, d.logger)
	if !ok {
		return
	}

	switch ev.Type {
	case TypeStart:
		d.logger.Debug("stream session started")

	case TypeCustomEvent:
		delta, started := d.acc.push(ev.Token)
		if started {
			d.logger.Debug("scaffold/content boundary crossed")
			d.sink.StreamingStart()
			d.sink.TypingChanged(true)
		}
		if delta != "" {
			d.sink.TokenReceived(delta)
		}

	case TypeNodeUpdate:
		d.sink.StreamingStatus(Status{
			Status: ev.Status,
			Type:   StatusTypeWorkflow,
			Node:   ev.Node,
		})

	case TypeToolExecuting:
		d.sink.StreamingStatus(Status{
			Status: "executing",
			Type:   StatusTypeTool,
			Node:   ev.Action,
		})

	case TypeToolCompleted:
		d.sink.StreamingStatus(Status{
			Status: "completed",
			Type:   StatusTypeTool,
			Node:   ev.Action,
		})

	case TypeToolResultMsg:
		d.handleToolResult(ev.Content)

	case TypeContent:
		d.lastContent = ev.Content
		d.hasContent = true
		if d.acc.streamed() {
			// Tokens already carry the full answer; reprocessing the
			// content blob would duplicate it.
			d.finish()
		}

	case TypeEnd:
		d.finish()
	}
}

// handleToolResult recovers the embedded JSON and emits tool events. Repair
// or parse failures drop this frame only; the stream continues.
func (d *Decoder) handleToolResult(content string) {
	payload, err := recoverToolResult(content)
	if err != nil {
		d.logger.Warn("dropping unrecoverable tool result",
			zap.Error(err),
			zap.String("content", content),
		)
		return
	}

	d.sink.ToolResult(chat.ToolResult{
		Action:  payload.Action,
		Status:  payload.Status,
		Data:    payload.Data,
		Success: payload.success(),
	})

	if urls := payload.imageURLs(); urls != nil {
		d.sink.ToolImagesFound(urls, payload.Action, payload.Data)
	}
}

// finish seals the stream and assembles the message record exactly once.
// The streaming path uses the accumulated delta text; otherwise the final
// content resolver runs on whatever content event the backend sent.
func (d *Decoder) finish() {
	if d.finished {
		return
	}
	d.finished = true
	d.acc.finish()

	var text string
	var media []chat.MediaItem

	if d.acc.streamed() {
		text = d.acc.text()
		media = extractMedia(text)
	} else if d.hasContent {
		text, media = resolveContent(d.lastContent)
	}

	if text == "" {
		d.logger.Warn("assembling message with empty content")
	}

	d.sink.StreamingEnd()
	d.sink.TypingChanged(false)

	msg := chat.NewMessage(text, media)
	d.logger.Debug("message assembled",
		zap.String("id", msg.ID),
		zap.Int("content_length", len(msg.Content)),
		zap.Bool("has_media", msg.Metadata.HasMedia),
		zap.Bool("streamed", d.acc.streamed()),
	)
	d.sink.MessageReceived(msg)
}

// abort surfaces a terminal failure exactly once. No message is assembled.
func (d *Decoder) abort(err error) error {
	if !d.errored {
		d.errored = true
		d.logger.Error("stream decode failed", zap.Error(err))
		d.sink.TypingChanged(false)
		d.sink.StreamError(err)
	}
	return err
}
