package main

import (
	"bytes"
	"strings"

	chroma "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/aymanbagabas/go-udiff"
	"github.com/mark3labs/carepath/internal/tui/theme"
)

// highlight renders source with the named chroma lexer ("yaml", "diff") for
// a true-color terminal. Any failure returns source unchanged.
func highlight(source, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Get("terminal256")
	}
	if formatter == nil {
		return source
	}

	baseStyle := styles.Get("monokai")
	if baseStyle == nil {
		baseStyle = styles.Fallback
	}

	// Match the palette background so output blends with the TUI.
	bgColour := chroma.MustParseColour(theme.Current().BgBase)
	style, err := baseStyle.Builder().Transform(func(entry chroma.StyleEntry) chroma.StyleEntry {
		entry.Background = bgColour
		return entry
	}).Build()
	if err != nil {
		style = baseStyle
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}

// colorize highlights source only when stdout is a terminal.
func colorize(source, language string) string {
	if !isTerminal() {
		return source
	}
	return highlight(source, language)
}

// configDiff returns a unified diff between two config documents, or "" when
// they are identical.
func configDiff(path string, before, after []byte) string {
	return udiff.Unified(path, path+" (new)", string(before), string(after))
}
