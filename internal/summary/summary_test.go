package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/coinpulse/internal/logger"
	"github.com/deusflow/coinpulse/internal/ratelimit"
)

func TestFallbackFirstThreeSentences(t *testing.T) {
	text := "One is here. Two is there! Three, where?  Four never shows. Five neither."
	got := Fallback(text)
	want := "One is here. Two is there! Three, where?"
	if got != want {
		t.Fatalf("Fallback = %q, want %q", got, want)
	}
}

func TestFallbackShortTextUnchanged(t *testing.T) {
	cases := []string{
		"Single sentence without end",
		"One. Two. Three.",
		"Version 2.0 launched today. It is fast.",
		"Line one.\nLine two.",
	}
	for _, in := range cases {
		if got := Fallback(in); got != in {
			t.Fatalf("Fallback(%q) = %q, want input unchanged", in, got)
		}
	}
}

func TestSplitSentencesNeedsWhitespace(t *testing.T) {
	got := SplitSentences("Price hit $1.5k today.Next line... and more!\tDone")
	want := []string{"Price hit $1.5k today.Next line...", "and more!", "Done"}
	if len(got) != len(want) {
		t.Fatalf("SplitSentences = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

type stubProvider struct {
	name  string
	out   string
	err   error
	block bool
	calls int
	input string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	s.calls++
	s.input = text
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

const longText = "Bitcoin rose. Ether followed. Solana lagged. Traders waited. Volumes were thin."

func TestSummarizeUsesFirstWorkingProvider(t *testing.T) {
	bad := &stubProvider{name: "a", err: errors.New("503")}
	good := &stubProvider{name: "b", out: "  Crypto markets rose.  "}
	s := New([]Provider{bad, good}, WithLogger(logger.Discard()))

	got := s.Summarize(context.Background(), longText)
	if got.Text != "Crypto markets rose." || got.Provider != "b" || got.Fallback {
		t.Fatalf("Summarize = %+v", got)
	}
	if bad.calls != 1 {
		t.Fatalf("first provider calls = %d, want 1", bad.calls)
	}
}

func TestSummarizeTruncatesInput(t *testing.T) {
	p := &stubProvider{name: "a", out: "ok"}
	s := New([]Provider{p}, WithLogger(logger.Discard()))

	s.Summarize(context.Background(), strings.Repeat("é", InputRunes+50))
	if n := len([]rune(p.input)); n != InputRunes {
		t.Fatalf("provider got %d runes, want %d", n, InputRunes)
	}
}

func TestSummarizeTimeoutFallsBack(t *testing.T) {
	slow := &stubProvider{name: "slow", block: true}
	s := New([]Provider{slow}, WithTimeout(20*time.Millisecond), WithLogger(logger.Discard()))

	got := s.Summarize(context.Background(), longText)
	if !got.Fallback {
		t.Fatalf("expected fallback summary, got %+v", got)
	}
	if got.Text != "Bitcoin rose. Ether followed. Solana lagged." {
		t.Fatalf("fallback text = %q", got.Text)
	}
}

func TestSummarizeEmptyOutputFallsBack(t *testing.T) {
	p := &stubProvider{name: "a", out: "   "}
	got := New([]Provider{p}, WithLogger(logger.Discard())).Summarize(context.Background(), "Short text.")
	if !got.Fallback || got.Text != "Short text." {
		t.Fatalf("Summarize = %+v", got)
	}
}

func TestSummarizeRespectsQuota(t *testing.T) {
	p := &stubProvider{name: "huggingface", out: "hosted"}
	q := ratelimit.NewQuota(1)
	s := New([]Provider{p}, WithLimiter(q), WithLogger(logger.Discard()))

	if got := s.Summarize(context.Background(), longText); got.Fallback {
		t.Fatalf("first call should use provider")
	}
	if got := s.Summarize(context.Background(), longText); !got.Fallback {
		t.Fatalf("second call should fall back once quota is spent")
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}
}

func TestSummarizeNoProvidersIsTotal(t *testing.T) {
	s := New(nil)
	for _, in := range []string{"a", "Hello world", longText, strings.Repeat("word ", 500)} {
		if got := s.Summarize(context.Background(), in); got.Text == "" {
			t.Fatalf("empty summary for %q", in)
		}
	}
}

func TestHuggingFaceRequestAndResponse(t *testing.T) {
	var gotReq hfRequest
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`[{"summary_text":" Bitcoin hit a record. "}]`))
	}))
	defer srv.Close()

	hf := NewHuggingFace("secret", "").WithBaseURL(srv.URL + "/models")
	out, err := hf.Summarize(context.Background(), "some text", 150)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "Bitcoin hit a record." {
		t.Fatalf("out = %q", out)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/models/facebook/bart-large-cnn" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotReq.Inputs != "some text" || gotReq.Parameters.MaxLength != 150 {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestHuggingFaceErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"loading":   {http.StatusServiceUnavailable, `{"error":"Model is currently loading"}`},
		"malformed": {http.StatusOK, `{"unexpected":true}`},
		"empty":     {http.StatusOK, `[]`},
		"errorbody": {http.StatusOK, `{"error":"quota"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			if _, err := NewHuggingFace("k", "m").WithBaseURL(srv.URL).Summarize(context.Background(), "x", 150); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCleanRemovesModelChatter(t *testing.T) {
	cases := map[string]string{
		"Summary: Bitcoin rose.":                                "Bitcoin rose.",
		"Here is a summary of the article:\nBitcoin rose.":      "Bitcoin rose.",
		"Bitcoin rose.\nNote: this summary may contain errors.": "Bitcoin rose.",
		"(Note: machine generated) Bitcoin rose.":               "Bitcoin rose.",
		"[Note: shortened] Bitcoin rose.":                       "Bitcoin rose.",
		"Bitcoin rose.\n\n  Ether   followed.":                  "Bitcoin rose. Ether followed.",
		"Analysts note: flows matter.":                          "Analysts note: flows matter.",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Fatalf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}
