package tools

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultTokenBudget caps the text the search tools return in one call.
const DefaultTokenBudget = 12000

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// TokenEncoding is the encoding used for every budget, whatever chat model
// is configured. It is the gpt-3.5-turbo encoding.
const TokenEncoding = "cl100k_base"

// TiktokenCounter counts with TokenEncoding. The encoding is loaded on first
// use; if it cannot be loaded the counter falls back to estimateTokens.
type TiktokenCounter struct {
	encoding string
	logger   *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter using TokenEncoding.
func NewTiktokenCounter(logger *zap.Logger) *TiktokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenCounter{encoding: TokenEncoding, logger: logger}
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("token encoding unavailable, estimating", zap.String("encoding", c.encoding), zap.Error(err))
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return estimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// estimateTokens approximates cl100k_base: about four ASCII characters per
// token and one token per other character, which covers CJK text.
func estimateTokens(text string) int {
	var ascii, other int
	for _, r := range text {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			other++
		}
	}
	return other + (ascii+3)/4
}

// budget accumulates text sections until the token cap would be exceeded.
type budget struct {
	limit int
	used  int
}

func newBudget(limit int) *budget {
	if limit <= 0 {
		limit = DefaultTokenBudget
	}
	return &budget{limit: limit}
}

// take reports whether n more tokens fit and, if so, charges them.
func (b *budget) take(n int) bool {
	if b.used+n > b.limit {
		return false
	}
	b.used += n
	return true
}
