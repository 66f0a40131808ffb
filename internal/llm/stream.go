package llm

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// TextStream is a finite, non-restartable sequence of incremental text
// fragments from a streaming completion. Callers must drain it with Next
// and then check Err: the sequence ends either cleanly at the provider's
// terminal sentinel or with an error, and both cases must be handled.
type TextStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	tracker *TokenTracker
	current string
	err     *Error
}

func newTextStream(inner *ssestream.Stream[openai.ChatCompletionChunk], tracker *TokenTracker) *TextStream {
	return &TextStream{inner: inner, tracker: tracker}
}

// Next advances to the next non-empty text fragment. It returns false at
// end of stream or on error; the two are distinguished by Err.
func (s *TextStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if chunk.Usage.TotalTokens > 0 {
			s.tracker.Add(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.current = text
			return true
		}
	}
	if err := s.inner.Err(); err != nil {
		s.err = Classify(err)
	}
	return false
}

// Text returns the fragment produced by the last successful Next.
func (s *TextStream) Text() string {
	return s.current
}

// Err returns the classified termination error, or nil after a clean end.
func (s *TextStream) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Close releases the underlying response body. Safe to call more than once.
func (s *TextStream) Close() error {
	return s.inner.Close()
}
