package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTelemetry = `{
  "events": [
    {"name": "tool_call", "attributes": {"tool_name": "read_file", "duration_ms": 12}},
    {"name": "tool_call", "attributes": {"tool_name": "write_file", "duration_ms": 30}},
    {"name": "tool_call", "attributes": {"tool_name": "read_file", "duration_ms": 8}},
    {"name": "api_request", "attributes": {"tool_name": "ignored"}}
  ]
}`

func TestSummarizeTelemetry(t *testing.T) {
	summary := SummarizeTelemetry([]byte(sampleTelemetry))

	assert.Contains(t, summary, "# Action Summary")
	assert.Contains(t, summary, "| read_file | 2 | 20 |")
	assert.Contains(t, summary, "| write_file | 1 | 30 |")
	assert.Contains(t, summary, "3 tool calls in total.")
	assert.NotContains(t, summary, "api_request")
}

func TestSummarizeTelemetryTopLevelArray(t *testing.T) {
	data := `[{"name": "tool_call", "attributes": {"tool_name": "grep", "duration_ms": 5}}]`

	summary := SummarizeTelemetry([]byte(data))
	assert.Contains(t, summary, "| grep | 1 | 5 |")
}

func TestSummarizeTelemetryMissingToolName(t *testing.T) {
	data := `{"events": [{"name": "tool_call", "attributes": {"duration_ms": 5}}]}`

	summary := SummarizeTelemetry([]byte(data))
	assert.Contains(t, summary, "| unknown | 1 | 5 |")
}

func TestSummarizeTelemetryEmpty(t *testing.T) {
	assert.Empty(t, SummarizeTelemetry(nil))
	assert.Empty(t, SummarizeTelemetry([]byte("not json at all")))
	assert.Empty(t, SummarizeTelemetry([]byte(`{"events": []}`)))
	assert.Empty(t, SummarizeTelemetry([]byte(`{"events": [{"name": "other"}]}`)))
}

func TestWriteActionSummary(t *testing.T) {
	dir := t.TempDir()
	telemetryPath := writeFile(t, dir, "telemetry.json", sampleTelemetry)
	summaryPath := filepath.Join(dir, "action-summary.md")

	require.NoError(t, WriteActionSummary(telemetryPath, summaryPath))

	content, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Action Summary")
}

func TestWriteActionSummaryMissingTelemetry(t *testing.T) {
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "action-summary.md")

	require.NoError(t, WriteActionSummary(filepath.Join(dir, "absent.json"), summaryPath))

	_, err := os.Stat(summaryPath)
	assert.True(t, os.IsNotExist(err), "no summary should be written without telemetry")
}
