package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/repository"
	"github.com/dkovalev/coinfunnel/internal/testutil"
)

func TestOffering(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	now := time.Now()

	t.Run("NextWebinar", func(t *testing.T) {
		t.Run("soonest upcoming wins", func(t *testing.T) {
			withTx(t, func(storage repository.Storage) {
				_, err := storage.Offering().CreateWebinar(t.Context(), now.Add(-time.Hour), "past", "")
				require.NoError(t, err)
				soon, err := storage.Offering().CreateWebinar(t.Context(), now.Add(time.Hour), "soon", "")
				require.NoError(t, err)
				_, err = storage.Offering().CreateWebinar(t.Context(), now.Add(48*time.Hour), "later", "")
				require.NoError(t, err)

				webinar, err := storage.Offering().NextWebinar(t.Context(), now)

				require.NoError(t, err)
				require.Equal(t, soon.ID, webinar.ID, "next webinar should be the soonest upcoming one")
			})
		})

		t.Run("nothing scheduled", func(t *testing.T) {
			withTx(t, func(storage repository.Storage) {
				_, err := storage.Offering().NextWebinar(t.Context(), now)

				require.ErrorIs(t, err, apperrors.ErrWebinarNotFound)
			})
		})
	})

	t.Run("ActiveCourse", func(t *testing.T) {
		t.Run("active future dated, soonest start", func(t *testing.T) {
			withTx(t, func(storage repository.Storage) {
				_, err := storage.Offering().CreateCourse(t.Context(), repository.CreateCourseParams{
					Name: "started already", StartsAt: now.Add(-time.Hour), Price: "1000.00", Active: true,
				})
				require.NoError(t, err)
				_, err = storage.Offering().CreateCourse(t.Context(), repository.CreateCourseParams{
					Name: "inactive", StartsAt: now.Add(time.Hour), Price: "1000.00", Active: false,
				})
				require.NoError(t, err)
				expected, err := storage.Offering().CreateCourse(t.Context(), repository.CreateCourseParams{
					Name: "soonest active", StartsAt: now.Add(24 * time.Hour), Price: "4990.00", Active: true,
				})
				require.NoError(t, err)
				_, err = storage.Offering().CreateCourse(t.Context(), repository.CreateCourseParams{
					Name: "later active", StartsAt: now.Add(48 * time.Hour), Price: "4990.00", Active: true,
				})
				require.NoError(t, err)

				course, err := storage.Offering().ActiveCourse(t.Context(), now)

				require.NoError(t, err)
				require.Equal(t, expected.ID, course.ID)
				require.True(t, course.Price.Equal(decimal.RequireFromString("4990.00")), "price should survive the round trip exactly")
			})
		})

		t.Run("no active course", func(t *testing.T) {
			withTx(t, func(storage repository.Storage) {
				_, err := storage.Offering().ActiveCourse(t.Context(), now)

				require.ErrorIs(t, err, apperrors.ErrCourseNotFound)
			})
		})
	})
}
