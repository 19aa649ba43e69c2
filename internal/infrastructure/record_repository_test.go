package infrastructure

import (
	"context"
	"testing"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRepositoryLatest(t *testing.T) {
	repo := NewRecordRepository(2, logger.Discard())
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)

	records := []domain.RawRecord{{"spend": "1"}}
	first, err := repo.Store(ctx, domain.Snapshot{Records: records})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Generation)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.FetchedAt.IsZero())

	records[0] = domain.RawRecord{"spend": "999"}
	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", latest.Records[0]["spend"])

	_, _ = repo.Store(ctx, domain.Snapshot{ID: "second"})
	third, _ := repo.Store(ctx, domain.Snapshot{ID: "third"})
	assert.Equal(t, uint64(3), third.Generation)

	list := repo.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].ID)
	assert.Equal(t, "second", list[1].ID)
	assert.Nil(t, list[0].Records)
}
