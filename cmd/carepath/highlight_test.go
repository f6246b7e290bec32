package main

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func TestConfigDiff(t *testing.T) {
	before := []byte("log_level: info\nheadless: false\n")
	after := []byte("log_level: debug\nheadless: false\n")

	assert.Empty(t, configDiff("carepath.yml", before, before))

	diff := configDiff("carepath.yml", before, after)
	assert.Contains(t, diff, "--- carepath.yml")
	assert.Contains(t, diff, "+++ carepath.yml (new)")
	assert.Contains(t, diff, "-log_level: info")
	assert.Contains(t, diff, "+log_level: debug")
}

func TestHighlight(t *testing.T) {
	src := "name: claim\ntitle: Submit Claim"
	for _, lang := range []string{"yaml", "diff", "no-such-lexer"} {
		assert.Equal(t, src, ansi.Strip(highlight(src, lang)), lang)
	}
}

func TestFlowSource(t *testing.T) {
	flow := builtinFlow(t, "claim")
	assert.Contains(t, string(flow.Source), "providerName")
}
