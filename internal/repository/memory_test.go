package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns what was saved", func(t *testing.T) {
		repo := NewMemorySessionRepository(time.Minute)
		snapshot := vanishSnapshot("abc")

		require.NoError(t, repo.Save(ctx, snapshot))
		retrieved, err := repo.GetByID(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, snapshot, retrieved)
	})

	t.Run("Stored copy is detached from the caller", func(t *testing.T) {
		repo := NewMemorySessionRepository(0)
		snapshot := vanishSnapshot("abc")
		require.NoError(t, repo.Save(ctx, snapshot))

		// When: the caller keeps mutating its snapshot
		snapshot.Round.Board[1] = entity.PlayerX
		snapshot.Round.History.O[0] = 7

		// Then: the stored state is unchanged
		retrieved, err := repo.GetByID(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, retrieved.Round.Board[1])
		assert.Equal(t, []int{0, 8}, retrieved.Round.History.O)
	})

	t.Run("Unknown id", func(t *testing.T) {
		repo := NewMemorySessionRepository(time.Minute)

		retrieved, err := repo.GetByID(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
		assert.Nil(t, retrieved)
	})

	t.Run("Expires after the ttl", func(t *testing.T) {
		now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
		repo := newMemorySessionRepository(time.Minute, func() time.Time { return now })
		require.NoError(t, repo.Save(ctx, vanishSnapshot("abc")))

		now = now.Add(59 * time.Second)
		_, err := repo.GetByID(ctx, "abc")
		require.NoError(t, err)

		now = now.Add(time.Second)
		_, err = repo.GetByID(ctx, "abc")
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewMemorySessionRepository(time.Minute)
		require.NoError(t, repo.Save(ctx, vanishSnapshot("abc")))

		require.NoError(t, repo.DeleteByID(ctx, "abc"))

		_, err := repo.GetByID(ctx, "abc")
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})
}
