package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/config"
	"github.com/sells-group/adrank-triage/internal/model"
	"github.com/sells-group/adrank-triage/internal/report"
)

// Artifacts are the paths of the files written for one report.
type Artifacts struct {
	JSONPath     string `json:"json_path"`
	MarkdownPath string `json:"markdown_path"`
}

// WriteArtifacts writes the JSON and Markdown renderings of rep into the
// configured output directory, creating it when missing. Existing files are
// overwritten.
func WriteArtifacts(out config.OutputConfig, rep *model.Report) (*Artifacts, error) {
	if rep == nil {
		return nil, eris.New("pipeline: no report to write")
	}

	dir := out.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}

	jsonData, err := report.JSON(rep)
	if err != nil {
		return nil, err
	}

	a := &Artifacts{
		JSONPath:     filepath.Join(dir, nameOr(out.JSONName, "debug_report.json")),
		MarkdownPath: filepath.Join(dir, nameOr(out.MarkdownName, "debug_report.md")),
	}
	if err := os.WriteFile(a.JSONPath, jsonData, 0o644); err != nil { //nolint:gosec
		return nil, eris.Wrapf(err, "pipeline: write %s", a.JSONPath)
	}
	if err := os.WriteFile(a.MarkdownPath, []byte(report.Markdown(rep)), 0o644); err != nil { //nolint:gosec
		return nil, eris.Wrapf(err, "pipeline: write %s", a.MarkdownPath)
	}

	zap.L().Info("pipeline: wrote report artifacts",
		zap.String("json", a.JSONPath),
		zap.String("markdown", a.MarkdownPath),
	)
	return a, nil
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
