package generation

import (
	"regexp"
	"strings"
)

const mediaMarker = "[media removed]"

var (
	reDataURL           = regexp.MustCompile(`(?is)\bdata:(image|video|audio)/[a-z0-9+.-]+;base64,[a-z0-9+/=]+`)
	reImgTag            = regexp.MustCompile(`(?is)<img[^>]*src=["']data:[^"']+["'][^>]*>`)
	reComment           = regexp.MustCompile(`(?s)<!--.*?-->`)
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
	reTrailingSpace     = regexp.MustCompile(`(?m)[ \t]+$`)
)

// CleanArtifact normalizes model output before it is stored in a bundle:
// inline base64 media is replaced with a marker, HTML comments dropped,
// line endings unified and blank runs collapsed to one empty line.
func CleanArtifact(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reImgTag.ReplaceAllString(text, mediaMarker)
	text = reDataURL.ReplaceAllString(text, mediaMarker)
	text = reComment.ReplaceAllString(text, "")
	text = reTrailingSpace.ReplaceAllString(text, "")
	text = reExcessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
