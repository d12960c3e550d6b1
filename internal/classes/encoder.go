package classes

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// Encoder turns text into tokens.
type Encoder interface {
	Encode(text string) []int
}

// TikToken encodes text with an OpenAI BPE encoding such as "cl100k_base".
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiktoken encoding %q", encodingName)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode implements Encoder.
func (t *TikToken) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Name returns the encoding name.
func (t *TikToken) Name() string { return t.name }

// Words encodes whitespace-separated words, assigning ids in order of first
// appearance.
type Words struct {
	ids   map[string]int
	words []string
}

// NewWords creates an empty word encoder.
func NewWords() *Words {
	return &Words{ids: make(map[string]int)}
}

// Encode implements Encoder.
func (w *Words) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.words)
			w.ids[f] = id
			w.words = append(w.words, f)
		}
		tokens[i] = id
	}
	return tokens
}

// Word returns the word of token id.
func (w *Words) Word(id int) string { return w.words[id] }
