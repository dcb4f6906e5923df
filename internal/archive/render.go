package archive

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"blueprint/internal/generation"
)

// RenderMarkdown lays a bundle out as one document: a header with run
// metadata followed by one section per stage in declared order.
func RenderMarkdown(b generation.Bundle) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", bundleTitle(b))
	fmt.Fprintf(&buf, "- Run: `%s`\n", b.RunID)
	fmt.Fprintf(&buf, "- Status: %s\n", b.OverallStatus)
	fmt.Fprintf(&buf, "- Model: %s\n", b.ModelUsed)
	if b.TemplateID != "" {
		fmt.Fprintf(&buf, "- Template: %s\n", b.TemplateID)
	}
	if !b.GeneratedAt.IsZero() {
		fmt.Fprintf(&buf, "- Generated: %s\n", b.GeneratedAt.UTC().Format(time.RFC3339))
	}

	for _, r := range b.Results {
		title := r.Title
		if title == "" {
			title = r.StageKey
		}
		fmt.Fprintf(&buf, "\n## %s\n\n", title)
		if !r.OK() {
			fmt.Fprintf(&buf, "_Stage failed (%s)._\n", r.Error)
			continue
		}
		text := strings.TrimSpace(demoteHeadings(r.Text))
		buf.WriteString(text)
		buf.WriteString("\n")
		if r.ModelUsed != "" {
			fmt.Fprintf(&buf, "\n_Generated by %s._\n", r.ModelUsed)
		}
	}
	return buf.Bytes()
}

func bundleTitle(b generation.Bundle) string {
	if name := strings.TrimSpace(b.Input.Name); name != "" {
		return name
	}
	if b.TemplateID != "" {
		return b.TemplateID
	}
	return "Project " + b.RunID
}

// demoteHeadings pushes stage headings below the document's "##" level.
func demoteHeadings(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "#") {
			lines[i] = "##" + line
		}
	}
	return strings.Join(lines, "\n")
}
