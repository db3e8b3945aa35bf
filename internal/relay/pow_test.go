package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
)

func TestMineZeroDifficultyJustSigns(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, Mine(context.Background(), id, event, 0))
	assert.NotEmpty(t, event.ID)
	assert.NoError(t, event.Verify())
}

func TestMineMeetsRequestedDifficulty(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	const difficulty = 8
	require.NoError(t, Mine(context.Background(), id, event, difficulty))

	assert.GreaterOrEqual(t, leadingZeroBits(event.ID), uint64(difficulty))
	assert.NoError(t, event.Verify())
}

func TestMineRespectsContextCancellation(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	err = Mine(ctx, id, event, 32)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetTagReplacesExisting(t *testing.T) {
	tags := [][]string{{"nonce", "1", "8"}, {"k", "MakerOrder"}}
	tags = setTag(tags, "nonce", "2", "8")

	require.Len(t, tags, 2)
	assert.Equal(t, []string{"nonce", "2", "8"}, tags[0])
}
