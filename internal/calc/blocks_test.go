package calc

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hazard-cli/internal/source"
)

func TestPartition(t *testing.T) {
	sources := []source.Source{point("a", 0), point("b", 0), point("c", 0), point("d", 0), point("e", 0)}

	blocks := Partition(sources, 2)
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0], 2)
	assert.Len(t, blocks[2], 1)
	assert.Equal(t, "e", blocks[2][0].ID())

	assert.Len(t, Partition(sources, 0), 1)
	assert.Empty(t, Partition(nil, 3))
}

func TestProcessBlocks(t *testing.T) {
	sources := []source.Source{
		point("a", 0, 5, 6),
		point("b", 2.2, 5, 6),
		point("far", 90, 6),
		point("c", 5, 5, 6),
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	summary, err := ProcessBlocks(context.Background(), lineFilter(t), sources,
		BlockConfig{BlockSize: 2, Workers: 2},
		func(_ context.Context, _ int, item SourceRuptureSites) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, item.Source.ID())
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Blocks)
	assert.Equal(t, 4, summary.Sources)
	assert.Equal(t, int64(5), summary.Ruptures)

	sort.Strings(seen)
	assert.Equal(t, []string{"a", "a", "b", "c", "c"}, seen)
}

func TestProcessBlocks_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ProcessBlocks(context.Background(), lineFilter(t), []source.Source{point("a", 0, 6)},
		BlockConfig{BlockSize: 1, Workers: 1},
		func(context.Context, int, SourceRuptureSites) error { return boom },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestProcessBlocks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := ProcessBlocks(ctx, lineFilter(t), []source.Source{point("a", 0, 5, 6)},
		BlockConfig{BlockSize: 1, Workers: 1},
		func(context.Context, int, SourceRuptureSites) error {
			called = true
			return nil
		},
	)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestProcessBlocks_Empty(t *testing.T) {
	summary, err := ProcessBlocks(context.Background(), lineFilter(t), nil, BlockConfig{}, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Blocks)
}
