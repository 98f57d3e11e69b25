package calc

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/source"
)

// BlockConfig controls partitioned processing.
type BlockConfig struct {
	BlockSize int
	Workers   int
	Options   []Option
}

// BlockSummary counts the work done by ProcessBlocks.
type BlockSummary struct {
	Blocks   int
	Sources  int
	Ruptures int64
}

// HandleFunc consumes one rupture of a block. It is called concurrently
// from different blocks.
type HandleFunc func(ctx context.Context, block int, item SourceRuptureSites) error

// Partition splits sources into consecutive blocks of at most size sources.
func Partition(sources []source.Source, size int) [][]source.Source {
	if size <= 0 {
		size = len(sources)
	}
	var blocks [][]source.Source
	for start := 0; start < len(sources); start += size {
		end := min(start+size, len(sources))
		blocks = append(blocks, sources[start:end])
	}
	return blocks
}

// ProcessBlocks runs the rupture pipeline over blocks of sources in
// parallel. Each block works on its own copy of the filter, decoded from
// the filter's transmitted form, so blocks share no mutable state. The
// context is checked between ruptures.
func ProcessBlocks(ctx context.Context, f *filters.SourceFilter, sources []source.Source, cfg BlockConfig, handle HandleFunc) (BlockSummary, error) {
	blocks := Partition(sources, cfg.BlockSize)
	summary := BlockSummary{Blocks: len(blocks), Sources: len(sources)}
	if len(blocks) == 0 {
		return summary, nil
	}

	snapshot, err := json.Marshal(f)
	if err != nil {
		return summary, eris.Wrap(err, "calc: encode source filter")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	zap.L().Info("processing source blocks",
		zap.Int("blocks", len(blocks)),
		zap.Int("sources", len(sources)),
		zap.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var ruptures atomic.Int64

	for i, block := range blocks {
		g.Go(func() error {
			wf, err := filters.RestoreSourceFilter(snapshot)
			if err != nil {
				return eris.Wrapf(err, "calc: block %d", i)
			}

			var n int64
			stream := GenRuptures(block, wf, cfg.Options...)
			for stream.Next() {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := handle(gctx, i, stream.Value()); err != nil {
					return eris.Wrapf(err, "calc: block %d", i)
				}
				n++
			}
			if err := stream.Err(); err != nil {
				return err
			}

			ruptures.Add(n)
			zap.L().Debug("block complete",
				zap.Int("block", i),
				zap.Int("sources", len(block)),
				zap.Int64("ruptures", n),
			)
			return nil
		})
	}

	err = g.Wait()
	summary.Ruptures = ruptures.Load()
	if err != nil {
		return summary, err
	}

	zap.L().Info("source blocks complete",
		zap.Int("blocks", summary.Blocks),
		zap.Int64("ruptures", summary.Ruptures),
	)
	return summary, nil
}
