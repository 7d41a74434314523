package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/fetcher"
)

// DatasetOptions controls how an impression log is read.
type DatasetOptions struct {
	// MaxRows caps the data rows read. 0 means unlimited.
	MaxRows int
	// Seed drives Simulate.
	Seed uint64
	// Simulate fills whichever of route_id, surface, pred_ctr and
	// rank_score are missing; columns present in the log are kept. When
	// false, missing columns are an error.
	Simulate bool
	// SheetName selects the XLSX worksheet. Default: first sheet.
	SheetName string
}

var simulatedColumns = []string{"route_id", "surface", "pred_ctr", "rank_score"}

// ReadImpressions reads a CSV or XLSX impression log. click is required;
// impr defaults to 1 and ctr to click/impr. Empty cells read as 0.
func ReadImpressions(ctx context.Context, path string, opts DatasetOptions) ([]Impression, error) {
	headerCh := make(chan []string, 1)

	var rowCh <-chan []string
	var errCh <-chan error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rowCh, errCh = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
			SheetName: opts.SheetName,
			HasHeader: true,
			HeaderCh:  headerCh,
			MaxRows:   opts.MaxRows,
		})
	default:
		f, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		rowCh, errCh = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
			HasHeader: true,
			HeaderCh:  headerCh,
			MaxRows:   opts.MaxRows,
			TrimSpace: true,
		})
	}

	var cols map[string]int
	var rows []Impression
	line := 1
	for rec := range rowCh {
		line++
		if cols == nil {
			var err error
			if cols, err = columnIndex(headerCh); err != nil {
				drain(rowCh)
				return nil, err
			}
		}
		imp, err := parseImpression(rec, cols)
		if err != nil {
			drain(rowCh)
			return nil, eris.Wrapf(err, "metrics: %s row %d", path, line)
		}
		rows = append(rows, imp)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "metrics: read %s", path)
		}
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("metrics: %s has no impression rows", path)
	}

	if missing := missingColumns(cols); len(missing) > 0 {
		if !opts.Simulate {
			return nil, eris.Errorf("metrics: %s is missing columns %s", path, strings.Join(missing, ", "))
		}
		zap.L().Info("metrics: simulating ranking fields",
			zap.String("path", path),
			zap.Strings("missing", missing),
			zap.Uint64("seed", opts.Seed),
		)
		SimulateColumns(rows, opts.Seed, missing)
	}

	return rows, nil
}

func columnIndex(headerCh <-chan []string) (map[string]int, error) {
	var header []string
	select {
	case header = <-headerCh:
	default:
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["click"]; !ok {
		return nil, eris.New("metrics: impression log has no click column")
	}
	return cols, nil
}

func missingColumns(cols map[string]int) []string {
	var missing []string
	for _, c := range simulatedColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func parseImpression(rec []string, cols map[string]int) (Impression, error) {
	num := func(name string, def float64) (float64, error) {
		i, ok := cols[name]
		if !ok {
			return def, nil
		}
		if i >= len(rec) || rec[i] == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return 0, eris.Wrapf(err, "column %s", name)
		}
		return v, nil
	}
	str := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var imp Impression
	var err error
	if imp.Click, err = num("click", 0); err != nil {
		return imp, err
	}
	if imp.Impr, err = num("impr", 1); err != nil {
		return imp, err
	}
	if _, ok := cols["ctr"]; ok {
		if imp.CTR, err = num("ctr", 0); err != nil {
			return imp, err
		}
	} else if imp.Impr != 0 {
		imp.CTR = imp.Click / imp.Impr
	}
	if imp.PredCTR, err = num("pred_ctr", 0); err != nil {
		return imp, err
	}
	if imp.RankScore, err = num("rank_score", 0); err != nil {
		return imp, err
	}
	imp.Route = str("route_id")
	imp.Surface = str("surface")
	return imp, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: open %s", path)
	}
	return f, nil
}

func drain(ch <-chan []string) {
	for range ch {
	}
}
