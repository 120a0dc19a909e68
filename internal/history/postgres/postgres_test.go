package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/pivbatch/internal/history"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tcpg.Run(ctx, "postgres:15-alpine",
		tcpg.WithDatabase("pivbatch"),
		tcpg.WithUsername("piv"),
		tcpg.WithPassword("piv"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestSink_RecordsLaunchAndFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	sink, err := New(startPostgres(ctx, t))
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	rec := history.Record{Key: "/tmp/PIV_feed", PID: 12345, Name: "shotA", Source: "/in/shotA", Destination: "/out/shotA", FinalNum: 50}
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventLaunch, OccurredAt: time.Now().UTC(), Record: rec}))
	rec.Error = "focus lost"
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventInjectFailed, OccurredAt: time.Now().UTC(), Record: rec}))

	var count int
	require.NoError(t, sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM launch_history WHERE key = $1", rec.Key).Scan(&count))
	assert.Equal(t, 2, count)

	var msg sql.NullString
	require.NoError(t, sink.db.QueryRowContext(ctx,
		"SELECT error FROM launch_history WHERE key = $1 AND event = $2", rec.Key, string(history.EventInjectFailed)).Scan(&msg))
	assert.Equal(t, "focus lost", msg.String)
}

func TestNew_EmptyDSN(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
