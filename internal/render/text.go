// Package render turns post and comment bodies into wrapped terminal text.
package render

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Body renders a post or comment body at the given width. Bodies are plain
// text; bodies that contain markup are flattened first.
func Body(raw string, width int) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.ContainsRune(raw, '<') {
		raw = stripMarkup(raw)
	} else {
		raw = html.UnescapeString(raw)
	}
	return wrapText(strings.TrimSpace(raw), width)
}

// Preview returns the first line of a body, cut to max runes.
func Preview(raw string, max int) string {
	text := Body(raw, 0)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	r := []rune(text)
	if max > 0 && len(r) > max {
		if max == 1 {
			return "…"
		}
		return strings.TrimSpace(string(r[:max-1])) + "…"
	}
	return text
}

// stripMarkup keeps text, turns block tags into line breaks and appends
// link targets in brackets.
func stripMarkup(raw string) string {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	var href string

	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			return sb.String()

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := tokenizer.Token()
			switch t.Data {
			case "p", "div":
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
			case "br":
				sb.WriteString("\n")
			case "li":
				sb.WriteString("\n- ")
			case "a":
				for _, attr := range t.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
			}

		case xhtml.EndTagToken:
			if tokenizer.Token().Data == "a" && href != "" {
				if !strings.HasSuffix(strings.TrimSpace(sb.String()), href) {
					sb.WriteString(" [" + href + "]")
				}
				href = ""
			}

		case xhtml.TextToken:
			sb.WriteString(tokenizer.Token().Data)
		}
	}
}

// wrapText performs simple word wrapping to the given width. Existing line
// breaks are kept.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}
		lineLen := 0
		for i, word := range words {
			wlen := len([]rune(word))
			if i > 0 && lineLen+1+wlen > width {
				result.WriteString("\n")
				lineLen = 0
			} else if i > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wlen
		}
		result.WriteString("\n")
	}
	return strings.TrimRight(result.String(), "\n")
}
