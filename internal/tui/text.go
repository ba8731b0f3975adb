package tui

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blankRun = regexp.MustCompile(`\n{3,}`)

// hyperlink wraps text in an OSC 8 sequence so terminals can open url.
func hyperlink(url, text string) string {
	return fmt.Sprintf("\033]8;;%s\a%s\033]8;;\a", url, text)
}

// truncate shortens s to n runes, ending in "…" when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// descriptionText turns an event description, which the calendar service
// stores as HTML, into terminal text. Anchors become hyperlinks whose
// visible text is cut to width.
func descriptionText(s string, width int) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var (
		b     strings.Builder
		href  string
		label strings.Builder
		inA   bool
	)
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		switch tt {
		case html.TextToken:
			text := collapseSpace(tok.Data)
			if inA {
				label.WriteString(text)
			} else {
				b.WriteString(text)
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.Br:
				b.WriteString("\n")
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.Tr, atom.Pre, atom.Blockquote:
				b.WriteString("\n")
			case atom.Li:
				b.WriteString("\n  • ")
			case atom.A:
				inA, href = true, attr(tok, "href")
				label.Reset()
			}

		case html.EndTagToken:
			switch tok.DataAtom {
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.Tr, atom.Pre, atom.Blockquote, atom.Ul, atom.Ol:
				b.WriteString("\n\n")
			case atom.A:
				b.WriteString(link(unwrapRedirect(href), strings.TrimSpace(label.String()), width))
				inA = false
			}
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "  • ") {
			lines[i] = "  • " + strings.TrimSpace(line[len("  • "):])
			continue
		}
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func link(href, text string, width int) string {
	if href == "" {
		return text
	}
	if text == "" {
		text = href
	}
	return hyperlink(href, truncate(text, width))
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeft(s[:1], " \t\n") == "" {
		out = " " + out
	}
	if strings.TrimRight(s[len(s)-1:], " \t\n") == "" {
		out += " "
	}
	return out
}

// unwrapRedirect returns the target of a www.google.com/url?q= wrapper.
func unwrapRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host == "www.google.com" && u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return q
		}
	}
	return raw
}
