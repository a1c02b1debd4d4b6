package dispatch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// SummarizeTelemetry turns the CLI's telemetry JSON into a Markdown table
// of tool calls. Events live either at the top level or under "events";
// anything unparseable yields an empty summary, not an error, because the
// telemetry file is best-effort.
func SummarizeTelemetry(data []byte) string {
	root := gjson.ParseBytes(data)

	events := root.Get("events")
	if !events.Exists() && root.IsArray() {
		events = root
	}
	if !events.Exists() {
		return ""
	}

	counts := map[string]int{}
	durations := map[string]float64{}

	events.ForEach(func(_, ev gjson.Result) bool {
		if ev.Get("name").String() != "tool_call" {
			return true
		}
		tool := ev.Get("attributes.tool_name").String()
		if tool == "" {
			tool = "unknown"
		}
		counts[tool]++
		durations[tool] += ev.Get("attributes.duration_ms").Float()
		return true
	})

	if len(counts) == 0 {
		return ""
	}

	tools := make([]string, 0, len(counts))
	for tool := range counts {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	var b strings.Builder
	b.WriteString("# Action Summary\n\n")
	b.WriteString("| Tool | Calls | Total ms |\n")
	b.WriteString("|------|-------|----------|\n")

	total := 0
	for _, tool := range tools {
		fmt.Fprintf(&b, "| %s | %d | %.0f |\n", tool, counts[tool], durations[tool])
		total += counts[tool]
	}

	fmt.Fprintf(&b, "\n%d tool calls in total.\n", total)
	return b.String()
}

// WriteActionSummary reads the telemetry file and writes the derived
// Markdown summary. A missing telemetry file is not an error; the CLI may
// legitimately produce none.
func WriteActionSummary(telemetryPath, summaryPath string) error {
	data, err := os.ReadFile(telemetryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read telemetry: %w", err)
	}

	summary := SummarizeTelemetry(data)
	if summary == "" {
		return nil
	}

	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("write action summary: %w", err)
	}
	return nil
}
