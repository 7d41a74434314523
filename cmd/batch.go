package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adrank-triage/internal/config"
)

var (
	batchInputs []string
	batchOutDir string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Triage several metrics documents in parallel",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(batchInputs) == 0 {
			return eris.New("batch: --inputs is required")
		}
		if batchOutDir != "" {
			cfg.Output.Dir = batchOutDir
		}

		env, err := initEnv(ctx, "batch", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		var mu sync.Mutex
		out := lockedWriter{w: os.Stdout, mu: &mu}

		outputs := batchOutputs(cfg.Output, batchInputs)
		return processBatch(ctx, batchInputs, cfg.Batch.MaxConcurrency, func(ctx context.Context, i int, input string) error {
			_, err := runOnce(ctx, env, input, outputs[i], out)
			return err
		})
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchInputs, "inputs", nil, "comma-separated metrics document paths or URLs")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "parent directory for per-input report artifacts (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// processBatch runs fn for every input, with its index, keeping at most
// concurrency in flight.
// A failed input is logged and does not stop the others; the returned error
// reports how many failed.
func processBatch(ctx context.Context, inputs []string, concurrency int, fn func(context.Context, int, string) error) error {
	if concurrency < 1 {
		concurrency = 1
	}

	log := zap.L().With(zap.String("command", "batch"))
	log.Info("starting batch", zap.Int("inputs", len(inputs)), zap.Int("concurrency", concurrency))

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			if gctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			if err := fn(gctx, i, input); err != nil {
				log.Error("batch: input failed", zap.String("input", input), zap.Error(err))
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	if n := failed.Load(); n > 0 {
		return eris.Errorf("batch: %d of %d inputs failed", n, len(inputs))
	}
	return nil
}

// batchOutputs gives each input its own artifact directory under out.Dir,
// named after the input's file stem. Repeated stems get a numeric suffix
// ("metrics", "metrics-2") so no two inputs share a directory.
func batchOutputs(out config.OutputConfig, inputs []string) []config.OutputConfig {
	dir := out.Dir
	if dir == "" {
		dir = "."
	}

	used := make(map[string]bool, len(inputs))
	outputs := make([]config.OutputConfig, len(inputs))
	for i, input := range inputs {
		stem := inputStem(input)
		name := stem
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[name] = true

		outputs[i] = out
		outputs[i].Dir = filepath.Join(dir, name)
	}
	return outputs
}

func inputStem(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "input"
	}
	return stem
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
