package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adrank-triage/internal/model"
)

// JSON renders the report as an indented JSON document.
func JSON(r *model.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, eris.Wrap(err, "report: encode json")
	}
	return buf.Bytes(), nil
}

// YAML renders the report as a YAML document. Evidence maps are normalised
// through JSON first so nested stats keep their document field names.
func YAML(r *model.Report) ([]byte, error) {
	raw, err := JSON(r)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "report: normalise for yaml")
	}
	blockStyle(&doc)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "report: close yaml encoder")
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow/quoted styles inherited from the JSON source.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Markdown renders the human-readable debug report.
func Markdown(r *model.Report) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("# Debug Report\n\n%s\n", r.Summary))

	lines = append(lines, "## Hypotheses\n")
	for i, h := range r.Hypotheses {
		lines = append(lines,
			fmt.Sprintf("### H%d: %s\n", i+1, h.Title),
			fmt.Sprintf("- **Confidence:** %s\n", h.Confidence),
			fmt.Sprintf("- **Evidence:** %s\n", formatEvidence(h.Evidence)),
			fmt.Sprintf("- **Proposed validation:** %s\n", h.Validation),
			"",
		)
	}

	lines = append(lines, "## Recommended Experiments\n")
	for _, e := range r.Experiments {
		lines = append(lines,
			fmt.Sprintf("### %s\n", e.Name),
			fmt.Sprintf("%s\n", e.Description),
			fmt.Sprintf("- **Success metrics:** %s\n", strings.Join(e.SuccessMetrics, ", ")),
			fmt.Sprintf("- **Guardrails:** %s\n", strings.Join(e.Guardrails, ", ")),
			"",
		)
	}

	if len(r.Notes) > 0 {
		lines = append(lines, "## Notes / Confounders\n")
		for _, n := range r.Notes {
			lines = append(lines, "- "+n)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// formatEvidence prints evidence as compact JSON; map keys come out sorted.
func formatEvidence(ev map[string]any) string {
	if len(ev) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return fmt.Sprint(ev)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
