package dispatch

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// BuildPrompt assembles the combined prompt: phase template, then the user
// request, then aggregated rule files (sorted by name) when a rules
// directory is configured.
func BuildPrompt(phase Phase, requestFile, rulesDir string) (string, error) {
	tmpl, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.md", phase))
	if err != nil {
		return "", fmt.Errorf("load template for phase %q: %w", phase, err)
	}

	request, err := os.ReadFile(requestFile)
	if err != nil {
		return "", fmt.Errorf("read request file: %w", err)
	}

	var b strings.Builder
	b.Write(tmpl)
	b.WriteString("\n\n# User Request\n\n")
	b.Write(request)

	if rulesDir != "" {
		rules, err := aggregateRules(rulesDir)
		if err != nil {
			return "", err
		}
		if rules != "" {
			b.WriteString("\n\n# Project Rules\n\n")
			b.WriteString(rules)
		}
	}

	b.WriteString("\n")
	return b.String(), nil
}

// aggregateRules concatenates every *.md file in dir, sorted by file name,
// each under a header naming its source file.
func aggregateRules(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read rules directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read rule file %s: %w", name, err)
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		b.Write(content)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()), nil
}
