package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ReplyKind tags the shape a provider answered in.
type ReplyKind int

const (
	KindPlainText ReplyKind = iota
	KindContentBlocks
	KindCompletion
)

func (k ReplyKind) String() string {
	switch k {
	case KindPlainText:
		return "plain_text"
	case KindContentBlocks:
		return "content_blocks"
	case KindCompletion:
		return "completion"
	}
	return fmt.Sprintf("ReplyKind(%d)", int(k))
}

// ContentBlock is one typed block of a messages-style reply.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply is a provider answer in one of three shapes. Text is the only way
// to read it.
type Reply struct {
	Kind       ReplyKind
	Plain      string
	Blocks     []ContentBlock
	Completion string
}

// PlainText wraps a bare string reply.
func PlainText(s string) Reply { return Reply{Kind: KindPlainText, Plain: s} }

// Blocks wraps a list of content blocks.
func Blocks(b []ContentBlock) Reply { return Reply{Kind: KindContentBlocks, Blocks: b} }

// Completion wraps a legacy completion-style reply.
func Completion(s string) Reply { return Reply{Kind: KindCompletion, Completion: s} }

// ErrEmptyReply is returned when a reply carries no text.
var ErrEmptyReply = errors.New("reply contains no text")

// Text returns the canonical text of the reply. Text blocks are joined with
// newlines; blocks of other types are ignored.
func (r Reply) Text() (string, error) {
	var text string
	switch r.Kind {
	case KindPlainText:
		text = r.Plain
	case KindCompletion:
		text = r.Completion
	case KindContentBlocks:
		parts := make([]string, 0, len(r.Blocks))
		for _, b := range r.Blocks {
			if b.Type == "text" || b.Type == "" {
				parts = append(parts, b.Text)
			}
		}
		text = strings.Join(parts, "\n")
	default:
		return "", fmt.Errorf("unknown reply kind %v", r.Kind)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// DecodeReply sniffs a messages-style JSON body. It accepts a top level
// "content" (block list, string or {"text"}), the first of "messages", or a
// "completion" string.
func DecodeReply(body []byte) (Reply, error) {
	var raw struct {
		Content  json.RawMessage `json:"content"`
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		Completion *string `json:"completion"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Reply{}, fmt.Errorf("unmarshal reply: %w", err)
	}

	content := raw.Content
	if isEmptyJSON(content) && len(raw.Messages) > 0 {
		content = raw.Messages[0].Content
	}
	if !isEmptyJSON(content) {
		return decodeContent(content)
	}
	if raw.Completion != nil {
		return Completion(*raw.Completion), nil
	}
	return Reply{}, errors.New("unexpected reply structure")
}

func decodeContent(content json.RawMessage) (Reply, error) {
	var blocks []ContentBlock
	if err := json.Unmarshal(content, &blocks); err == nil {
		return Blocks(blocks), nil
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return PlainText(s), nil
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(content, &obj); err == nil && obj.Text != nil {
		return PlainText(*obj.Text), nil
	}
	return Reply{}, fmt.Errorf("unable to extract text from content: %.80s", string(content))
}

func isEmptyJSON(m json.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return s == "" || s == "null"
}
