// internal/admin/implementation_test.go
package admin

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eternalflame/internal/apperr"
	"eternalflame/pkg/sqlgateway"
)

var testNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service, *sqlgateway.Gateway) {
	t.Helper()

	cfg := sqlgateway.Config{Backend: sqlgateway.BackendSQLite, DSN: filepath.Join(t.TempDir(), "admin.db")}
	require.NoError(t, sqlgateway.Migrate(cfg, zerolog.Nop()))
	gw, err := sqlgateway.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	svc := NewService(gw, time.UTC, zerolog.Nop()).(*service)
	svc.now = func() time.Time { return testNow }
	return svc, gw
}

func exec(t *testing.T, gw *sqlgateway.Gateway, query string, args ...any) {
	t.Helper()
	err := gw.WithConnection(context.Background(), func(conn *sqlgateway.Conn) error {
		_, err := conn.Cursor().Execute(context.Background(), query, args...)
		return err
	})
	require.NoError(t, err)
}

func seedUsers(t *testing.T, gw *sqlgateway.Gateway, names ...string) {
	t.Helper()
	for _, name := range names {
		exec(t, gw, "INSERT INTO users (username, password_hash, created_at) VALUES (?, 'x', ?)",
			name, sqlgateway.Timestamp(testNow))
	}
}

func seedLog(t *testing.T, gw *sqlgateway.Gateway, userID any, at time.Time) {
	t.Helper()
	exec(t, gw, `INSERT INTO calculate_logs (user_id, pet_name, death_date, locale, result_json, created_at)
		VALUES (?, 'Mochi', '2023-01-15', 'zh', '{}', ?)`, userID, sqlgateway.Timestamp(at))
}

func TestStats(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, *stats)

	seedUsers(t, gw, "mochi", "tofu")
	seedLog(t, gw, 1, testNow.Add(-time.Hour))
	seedLog(t, gw, nil, testNow.Add(-2*time.Hour))
	seedLog(t, gw, nil, testNow.Add(-36*time.Hour))

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalUsers: 2, TodayCalculates: 2, TotalCalculates: 3}, *stats)
}

func TestStatsTodayFollowsLocation(t *testing.T) {
	svc, gw := newTestService(t)
	shanghai := time.FixedZone("CST", 8*3600)
	svc.loc = shanghai

	// 2024-03-20 12:00 UTC is 20:00 in UTC+8; local midnight is 16:00 UTC the day before.
	seedLog(t, gw, nil, time.Date(2024, time.March, 19, 17, 0, 0, 0, time.UTC))
	seedLog(t, gw, nil, time.Date(2024, time.March, 19, 15, 0, 0, 0, time.UTC))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TodayCalculates)
}

func TestListUsersPagingAndSearch(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		seedUsers(t, gw, fmt.Sprintf("user%02d", i))
	}
	seedUsers(t, gw, "mochi")

	page, err := svc.ListUsers(ctx, PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(26), page.Total)
	require.Len(t, page.Items, defaultPerPage)
	assert.Equal(t, "mochi", page.Items[0].Username, "newest first")

	page, err = svc.ListUsers(ctx, PageQuery{Page: 2, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 6)

	page, err = svc.ListUsers(ctx, PageQuery{Search: "user1"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), page.Total)

	page, err = svc.ListUsers(ctx, PageQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestPageQueryNormalize(t *testing.T) {
	q := PageQuery{Page: -3, PerPage: 5000}.normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, maxPerPage, q.PerPage)
	assert.Equal(t, 0, q.offset())

	q = PageQuery{Page: 3, PerPage: 10}.normalize()
	assert.Equal(t, 20, q.offset())
}

func TestListCalculateLogs(t *testing.T) {
	svc, gw := newTestService(t)

	seedLog(t, gw, 7, testNow.Add(-time.Hour))
	seedLog(t, gw, nil, testNow)

	page, err := svc.ListCalculateLogs(context.Background(), PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)

	assert.Nil(t, page.Items[0].UserID)
	require.NotNil(t, page.Items[1].UserID)
	assert.Equal(t, int64(7), *page.Items[1].UserID)
	assert.Equal(t, "2023-01-15", page.Items[1].EventDate)
	assert.Equal(t, "Mochi", page.Items[1].PetName)
}

func TestPutSettingUpserts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PutSetting(ctx, "site_title", "Eternal Flame"))
	require.NoError(t, svc.PutSetting(ctx, " site_title ", "Eternal Flame 2"))
	require.NoError(t, svc.PutSetting(ctx, "footer", ""))

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "Eternal Flame 2", settings["site_title"].Value)
	assert.False(t, settings["site_title"].UpdatedAt.IsZero())
	assert.Equal(t, "", settings["footer"].Value)
}

func TestPutSettingRequiresKey(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.PutSetting(context.Background(), "  ", "v")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "setting_key_required", apperr.KeyOf(err))
}

func TestUnavailableStore(t *testing.T) {
	svc, gw := newTestService(t)
	require.NoError(t, gw.Close())

	_, err := svc.Stats(context.Background())
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}
