package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// maxSSELine bounds one "data:" line of the event stream.
const maxSSELine = 1024 * 1024

// StreamParser reads chat completion chunks from a Server-Sent Events body.
type StreamParser struct {
	scanner *bufio.Scanner
}

func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &StreamParser{scanner: scanner}
}

// StreamChunk is one decoded event. Upstream is set when the provider
// reported an error inside the stream.
type StreamChunk struct {
	Content      string
	FinishReason string
	Upstream     *UpstreamError
	Done         bool
}

// Next reads the next chunk. At the end of the body it returns a chunk with
// Done set.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if resp.Error != nil {
			return &StreamChunk{Upstream: resp.Error, Done: true}, nil
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			content := choice.Delta.Content
			if content == "" {
				content = choice.Message.Content
			}
			return &StreamChunk{
				Content:      content,
				FinishReason: choice.FinishReason,
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return &StreamChunk{Done: true}, nil
}
