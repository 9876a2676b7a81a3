package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	styleName   = "dracula"
	fenceMarker = "```"
)

// token is a syntax-highlighted chunk of text.
type token struct {
	Text  string
	Color string // hex color, empty for default
}

// highlightJSON tokenizes the plan's indented JSON form, one token slice
// per line.
func highlightJSON(lines []string) [][]token {
	return tokenize(lexerFor("json"), lines)
}

// highlightFences tokenizes the fenced code blocks of a free-text plan
// section using each fence's language tag. Prose, the fence markers and
// blocks without a known language get nil token slices. An unclosed fence
// runs to the end of the section.
func highlightFences(lines []string) [][]token {
	out := make([][]token, len(lines))
	for i := 0; i < len(lines); i++ {
		lang, ok := fenceOpen(lines[i])
		if !ok {
			continue
		}
		end := i + 1
		for end < len(lines) && strings.TrimSpace(lines[end]) != fenceMarker {
			end++
		}
		if lexer := lexerFor(lang); lexer != nil && end > i+1 {
			copy(out[i+1:end], tokenize(lexer, lines[i+1:end]))
		}
		i = end
	}
	return out
}

// fenceOpen reports whether line opens a fenced block and returns its
// language tag ("go" for "```go title").
func fenceOpen(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), fenceMarker)
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", true
	}
	return strings.ToLower(fields[0]), true
}

// lexerFor resolves a fence tag by lexer name or alias ("golang", "yml"),
// then as a file extension ("tsx"). It returns nil when nothing matches.
func lexerFor(lang string) chroma.Lexer {
	if lang == "" {
		return nil
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Match("file." + lang)
	}
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}

// tokenize runs lexer over lines and splits the stream back into lines.
// It falls back to untokenized text when lexing fails.
func tokenize(lexer chroma.Lexer, lines []string) [][]token {
	if lexer == nil {
		return plainLines(lines)
	}
	it, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plainLines(lines)
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	out := make([][]token, 0, len(lines))
	var current []token
	for _, t := range it.Tokens() {
		for i, part := range strings.Split(t.Value, "\n") {
			if i > 0 {
				out = append(out, current)
				current = nil
			}
			if part != "" {
				current = append(current, token{Text: part, Color: tokenColor(style, t.Type)})
			}
		}
	}
	out = append(out, current)
	for len(out) < len(lines) {
		out = append(out, nil)
	}
	return out[:len(lines)]
}

func plainLines(lines []string) [][]token {
	out := make([][]token, len(lines))
	for i, l := range lines {
		out[i] = []token{{Text: l}}
	}
	return out
}

func tokenColor(style *chroma.Style, tt chroma.TokenType) string {
	if e := style.Get(tt); e.Colour.IsSet() {
		return e.Colour.String()
	}
	return ""
}
