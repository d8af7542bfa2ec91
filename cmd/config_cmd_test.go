package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-cli/internal/config"
)

func TestPrintConfig(t *testing.T) {
	c := scrapeConfig()
	c.Server = config.ServerConfig{Port: 3000, Envelope: "object"}
	c.Output.Path = "results.json"

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, c))

	out := buf.String()
	assert.Contains(t, out, "server:\n  port: 3000")
	assert.Contains(t, out, "envelope: object")
	assert.Contains(t, out, "search_engine:\n    base_url: https://ddg.test")
	assert.Contains(t, out, "path: results.json")
	assert.NotContains(t, out, "# valid for")

	var back config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, c.Pipeline.Sources, back.Pipeline.Sources)
	assert.Equal(t, c.Enrich.MaxAttempts, back.Enrich.MaxAttempts)
}

func TestPrintConfig_ValidateNote(t *testing.T) {
	configValidateMode = "scrape"
	t.Cleanup(func() { configValidateMode = "" })

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, scrapeConfig()))
	assert.Contains(t, buf.String(), "# valid for scrape\n")
}
