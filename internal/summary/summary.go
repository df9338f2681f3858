// Package summary turns article text into a short synopsis.
//
// Hosted providers are tried in order; when every one of them fails (or is out of
// quota) the local sentence splitter produces the result, so Summarize always
// returns something publishable.
package summary

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	InputRunes     = 1024
	TargetTokens   = 150
	DefaultTimeout = 30 * time.Second
	fallbackName   = "fallback"
)

var (
	ErrEmptySummary = errors.New("empty summary")

	reNoteInline = regexp.MustCompile(`(?i)[(\[]\s*note:[^)\]]*[)\]]`)
	reNoteLine   = regexp.MustCompile(`(?im)^\s*note:.*$`)
	reLeadLabel  = regexp.MustCompile(`(?i)^\s*(here is (a|the) summary[^:\n]*|summary)\s*:\s*`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Provider is a hosted summarization model.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// Limiter gates requests to a provider. *ratelimit.Quota satisfies it.
type Limiter interface {
	Take(provider string) error
}

type Summary struct {
	Text     string
	Provider string
	Fallback bool
}

type Summarizer struct {
	providers []Provider
	limiter   Limiter
	timeout   time.Duration
	log       *slog.Logger
}

type Option func(*Summarizer)

func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLimiter(l Limiter) Option {
	return func(s *Summarizer) { s.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) { s.log = l }
}

func New(providers []Provider, opts ...Option) *Summarizer {
	s := &Summarizer{
		providers: providers,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize never fails; see the package doc.
func (s *Summarizer) Summarize(ctx context.Context, text string) Summary {
	input := truncateRunes(text, InputRunes)

	for _, p := range s.providers {
		if s.limiter != nil {
			if err := s.limiter.Take(p.Name()); err != nil {
				s.log.Warn("summarizer skipped", "provider", p.Name(), "err", err)
				continue
			}
		}

		out, err := s.call(ctx, p, input)
		if err != nil {
			s.log.Warn("summarization failed", "provider", p.Name(), "err", err)
			continue
		}
		return Summary{Text: out, Provider: p.Name()}
	}

	return Summary{Text: Fallback(text), Provider: fallbackName, Fallback: true}
}

func (s *Summarizer) call(ctx context.Context, p Provider, input string) (out string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err = p.Summarize(ctx, input, TargetTokens)
	if err != nil {
		return "", err
	}
	if out = Clean(out); out == "" {
		return "", ErrEmptySummary
	}
	return out, nil
}

// Clean strips labels and disclaimers models like to add around a summary.
func Clean(out string) string {
	out = reNoteInline.ReplaceAllString(out, "")
	out = reNoteLine.ReplaceAllString(out, "")
	out = reLeadLabel.ReplaceAllString(strings.TrimSpace(out), "")
	return strings.TrimSpace(reSpaces.ReplaceAllString(out, " "))
}

// Fallback keeps the first three sentences. Text with three or fewer sentences is
// returned unchanged.
func Fallback(text string) string {
	sentences := SplitSentences(text)
	if len(sentences) > 3 {
		return strings.Join(sentences[:3], " ")
	}
	return text
}

// SplitSentences cuts after '.', '!' or '?' when followed by whitespace. The
// whitespace run between sentences is dropped.
func SplitSentences(text string) []string {
	var (
		out   []string
		runes = []rune(text)
		start = 0
	)
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminal(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) || len(out) == 0 {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
