package downloader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"freepub/downloader/internal/pdf"

	"golang.org/x/text/unicode/norm"
)

const containerComment = "Created by " + pdf.CreatorName

var (
	nonAlnum      = regexp.MustCompile(`[^a-zA-Z0-9]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// documentFilename derives a safe filename from a publication title:
// capped at 100 characters, diacritics folded away, everything outside
// [a-zA-Z0-9] collapsed to single underscores.
func documentFilename(title string) string {
	runes := []rune(title)
	if len(runes) > 100 {
		runes = runes[:100]
	}

	var sb strings.Builder
	for _, r := range norm.NFD.String(string(runes)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks left over from NFD are dropped
		case r == 'ł':
			sb.WriteRune('l')
		case r == 'Ł':
			sb.WriteRune('L')
		default:
			sb.WriteRune(r)
		}
	}

	name := strings.TrimSpace(sb.String())
	name = nonAlnum.ReplaceAllString(name, "_")
	name = underscoreRun.ReplaceAllString(name, "_")
	return name + ".pdf"
}

// containerFilename names the multi-artifact container from the current
// time, uppercase hex milliseconds.
func containerFilename(now time.Time) string {
	return fmt.Sprintf("freepub_%s.zip", strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 16)))
}
