package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/logging"
)

func TestFilterNewDropsRecordedURLs(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, domain.StoredRecord{URL: "https://x/1", Title: "old", Score: 8}))

	items := []domain.RawItem{
		{URL: "https://x/1", Title: "old"},
		{URL: "https://x/2", Title: "new"},
		{URL: "https://x/3", Title: "newer"},
	}

	fresh := FilterNew(ctx, store, items, logging.Discard())
	require.Len(t, fresh, 2)
	assert.Equal(t, "https://x/2", fresh[0].URL)
	assert.Equal(t, "https://x/3", fresh[1].URL)
}

func TestFilterNewQueriesStoreOnceWithUniqueURLs(t *testing.T) {
	t.Parallel()
	repo := &flakyRepo{SQLiteRepository: newStore(t)}
	ctx := context.Background()
	require.NoError(t, repo.SQLiteRepository.Insert(ctx, domain.StoredRecord{URL: "https://x/1", Title: "old", Score: 8}))

	items := []domain.RawItem{
		{URL: "https://x/1", Title: "old"},
		{URL: "https://x/2", Title: "new"},
		{URL: "", Title: "no link"},
		{URL: "https://x/2", Title: "new again"},
		{URL: "https://x/1", Title: "old again"},
		{URL: "https://x/3", Title: "newer"},
	}

	fresh := FilterNew(ctx, repo, items, logging.Discard())

	require.Len(t, repo.existingCalls, 1)
	assert.Equal(t, []string{"https://x/1", "https://x/2", "https://x/3"}, repo.existingCalls[0])
	assert.LessOrEqual(t, len(fresh), len(items))
	for _, item := range fresh {
		assert.NotEqual(t, "https://x/1", item.URL)
	}
	assert.Len(t, fresh, 4)
}

func TestFilterNewFailsOpen(t *testing.T) {
	t.Parallel()
	repo := &flakyRepo{SQLiteRepository: newStore(t), existingErr: errors.New("connection refused")}

	items := []domain.RawItem{{URL: "https://x/1"}, {URL: "https://x/2"}}
	fresh := FilterNew(context.Background(), repo, items, logging.Discard())
	assert.Equal(t, items, fresh)
	assert.Len(t, repo.existingCalls, 1)
}

func TestFilterNewWithoutRepository(t *testing.T) {
	t.Parallel()
	items := []domain.RawItem{{URL: "https://x/1"}}
	assert.Equal(t, items, FilterNew(context.Background(), nil, items, logging.Discard()))
}
