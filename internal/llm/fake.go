package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"blueprint/internal/llmclient"
)

// FakeTransport returns deterministic markdown for offline runs and tests.
// Models listed in Delays sleep before answering, honoring ctx.
type FakeTransport struct {
	Delays map[string]time.Duration
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Delays: map[string]time.Duration{"fake-slow": 750 * time.Millisecond}}
}

func (f *FakeTransport) Name() string { return "fake" }
func (f *FakeTransport) Close() error { return nil }

func (f *FakeTransport) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	if d := f.Delays[req.Model]; d > 0 {
		if err := sleepCtx(ctx, d); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title := strings.TrimSpace(req.Prompt)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = truncateRunes(title, 80)
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Prompt))

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "_Offline draft from %s (digest %08x)._\n\n", req.Model, h.Sum32())
	sb.WriteString("## Summary\n\n")
	sb.WriteString("This section was produced without contacting a model provider. ")
	sb.WriteString("Configure a provider API key to generate real content.\n")
	return sb.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
