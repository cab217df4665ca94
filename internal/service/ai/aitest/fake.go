// Package aitest provides scripted chat models for tests.
package aitest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/lifecraft/profiler/backend/internal/config"
)

// Config returns an AI config that passes the credential check.
func Config() config.AIConfig {
	return config.AIConfig{Model: "test-model", APIKey: "test-key-0123456789"}
}

// Reply scripts one Stream call.
type Reply struct {
	Chunks []string
	// Err fails the call before any chunk is produced.
	Err error
	// StreamErr is sent after all chunks instead of a clean end.
	StreamErr error
	// Block waits for the call context to end before failing.
	Block bool
	// Delay spaces out chunks; a context ending during the wait fails the
	// stream.
	Delay time.Duration
}

// Text is a single-chunk successful reply.
func Text(s string) Reply {
	return Reply{Chunks: []string{s}}
}

// Words splits s into space-preserving chunks.
func Words(s string) Reply {
	parts := strings.SplitAfter(s, " ")
	return Reply{Chunks: parts}
}

// Model plays back scripted replies in order; the last reply repeats.
type Model struct {
	mu       sync.Mutex
	replies  []Reply
	calls    atomic.Int32
	received [][]*schema.Message
}

var _ model.BaseChatModel = (*Model)(nil)

// NewModel creates a scripted model.
func NewModel(replies ...Reply) *Model {
	return &Model{replies: replies}
}

// Calls counts Stream and Generate invocations.
func (m *Model) Calls() int {
	return int(m.calls.Load())
}

// Received returns the prompts passed to each call.
func (m *Model) Received() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.received...)
}

func (m *Model) next(messages []*schema.Message) Reply {
	n := int(m.calls.Add(1))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, messages)
	if len(m.replies) == 0 {
		return Reply{Err: errors.New("no scripted reply")}
	}
	if n > len(m.replies) {
		n = len(m.replies)
	}
	return m.replies[n-1]
}

// Generate returns the concatenated chunks of the next reply.
func (m *Model) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reply := m.next(messages)
	if reply.Err != nil {
		return nil, reply.Err
	}
	if reply.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if reply.StreamErr != nil {
		return nil, reply.StreamErr
	}
	return schema.AssistantMessage(strings.Join(reply.Chunks, ""), nil), nil
}

// Stream plays the next reply chunk by chunk.
func (m *Model) Stream(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reply := m.next(messages)
	if reply.Err != nil {
		return nil, reply.Err
	}

	sr, sw := schema.Pipe[*schema.Message](len(reply.Chunks) + 1)
	go func() {
		defer sw.Close()
		if reply.Block {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
			return
		}
		for i, chunk := range reply.Chunks {
			if reply.Delay > 0 && i > 0 {
				select {
				case <-time.After(reply.Delay):
				case <-ctx.Done():
					sw.Send(nil, ctx.Err())
					return
				}
			}
			if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
		if reply.StreamErr != nil {
			sw.Send(nil, reply.StreamErr)
		}
	}()
	return sr, nil
}
