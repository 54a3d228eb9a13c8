package repo

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"shortener.local/internal/app/shortlink"
)

var baseTime = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

func newLink(code string, createdAt time.Time, expiresAt *time.Time) shortlink.ShortLink {
	return shortlink.ShortLink{
		ID:          uuid.NewString(),
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		DeleteToken: shortlink.GenerateDeleteToken(),
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}
}

func at(d time.Duration) *time.Time {
	t := baseTime.Add(d)
	return &t
}

// runStoreContract 对任意 shortlink.Store 实现跑同一组行为测试。
func runStoreContract(t *testing.T, open func(t *testing.T) shortlink.Store) {
	t.Run("insert and find", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		in := newLink("Abc123", baseTime, at(time.Hour))
		require.NoError(t, s.Insert(ctx, in))

		got, err := s.FindByCode(ctx, "Abc123")
		require.NoError(t, err)
		require.Equal(t, in.ID, got.ID)
		require.Equal(t, in.OriginalURL, got.OriginalURL)
		require.Equal(t, in.DeleteToken, got.DeleteToken)
		require.True(t, in.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", in.CreatedAt, got.CreatedAt)
		require.NotNil(t, got.ExpiresAt)
		require.True(t, in.ExpiresAt.Equal(*got.ExpiresAt))
		require.Equal(t, int64(0), got.Clicks)

		_, err = s.FindByCode(ctx, "abc123")
		require.ErrorIs(t, err, shortlink.ErrNotFound, "codes are case-sensitive")
	})

	t.Run("duplicate code", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Dup001", baseTime, nil)))
		err := s.Insert(ctx, newLink("Dup001", baseTime, nil))
		require.ErrorIs(t, err, shortlink.ErrCodeTaken)
	})

	t.Run("increment clicks", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Clk001", baseTime, at(time.Minute))))

		got, err := s.IncrementClicks(ctx, "Clk001", baseTime)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Clicks)
		got, err = s.IncrementClicks(ctx, "Clk001", baseTime.Add(59*time.Second))
		require.NoError(t, err)
		require.Equal(t, int64(2), got.Clicks)

		_, err = s.IncrementClicks(ctx, "Clk001", baseTime.Add(time.Minute))
		require.ErrorIs(t, err, shortlink.ErrExpired)
		_, err = s.IncrementClicks(ctx, "Nope00", baseTime)
		require.ErrorIs(t, err, shortlink.ErrNotFound)

		stored, err := s.FindByCode(ctx, "Clk001")
		require.NoError(t, err)
		require.Equal(t, int64(2), stored.Clicks, "expired resolve must not count")
	})

	t.Run("concurrent increments", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Par001", baseTime, nil)))

		const n = 40
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.IncrementClicks(ctx, "Par001", baseTime); err != nil {
					t.Errorf("IncrementClicks: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := s.FindByCode(ctx, "Par001")
		require.NoError(t, err)
		require.Equal(t, int64(n), got.Clicks)
	})

	t.Run("list order and filter", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Old001", baseTime, at(time.Second))))
		require.NoError(t, s.Insert(ctx, newLink("Mid001", baseTime.Add(time.Minute), nil)))
		require.NoError(t, s.Insert(ctx, newLink("New001", baseTime.Add(2*time.Minute), at(time.Hour))))

		now := baseTime.Add(5 * time.Minute)
		all, err := s.List(ctx, false, now)
		require.NoError(t, err)
		require.Equal(t, []string{"New001", "Mid001", "Old001"}, codesOf(all))

		active, err := s.List(ctx, true, now)
		require.NoError(t, err)
		require.Equal(t, []string{"New001", "Mid001"}, codesOf(active))
	})

	t.Run("delete by code", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Del001", baseTime, nil)))
		require.NoError(t, s.DeleteByCode(ctx, "Del001"))
		require.ErrorIs(t, s.DeleteByCode(ctx, "Del001"), shortlink.ErrNotFound)
		_, err := s.FindByCode(ctx, "Del001")
		require.ErrorIs(t, err, shortlink.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newLink("Exp001", baseTime, at(time.Second))))
		require.NoError(t, s.Insert(ctx, newLink("Exp002", baseTime, at(time.Minute))))
		require.NoError(t, s.Insert(ctx, newLink("Liv001", baseTime, at(time.Hour))))
		require.NoError(t, s.Insert(ctx, newLink("For001", baseTime, nil)))

		removed, err := s.DeleteExpired(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		codes := codesOf(removed)
		sort.Strings(codes)
		require.Equal(t, []string{"Exp001", "Exp002"}, codes)

		again, err := s.DeleteExpired(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		require.Empty(t, again)

		left, err := s.Codes(ctx)
		require.NoError(t, err)
		sort.Strings(left)
		require.Equal(t, []string{"For001", "Liv001"}, left)
	})

	t.Run("stats", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		empty, err := s.Stats(ctx, baseTime)
		require.NoError(t, err)
		require.Equal(t, int64(0), empty.Total)

		require.NoError(t, s.Insert(ctx, newLink("Sta001", baseTime, at(time.Second))))
		require.NoError(t, s.Insert(ctx, newLink("Sta002", baseTime, nil)))
		_, err = s.IncrementClicks(ctx, "Sta001", baseTime)
		require.NoError(t, err)
		_, err = s.IncrementClicks(ctx, "Sta002", baseTime)
		require.NoError(t, err)
		_, err = s.IncrementClicks(ctx, "Sta002", baseTime)
		require.NoError(t, err)

		st, err := s.Stats(ctx, baseTime.Add(time.Second))
		require.NoError(t, err)
		require.Equal(t, int64(2), st.Total)
		require.Equal(t, int64(1), st.Active)
		require.Equal(t, int64(1), st.Expired)
		require.Equal(t, int64(3), st.TotalClicks)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, open(t).Ping(context.Background()))
	})
}

func codesOf(links []shortlink.ShortLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ShortCode)
	}
	return out
}
