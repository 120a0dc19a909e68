package factory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/pivbatch/internal/history"
)

func TestNewSinkFromDSN_ClickHouseFreshServer(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	c, err := tcch.Run(ctx, "clickhouse/clickhouse-server:24.3.2.23",
		tcch.WithUsername("default"),
		tcch.WithPassword(""),
		tcch.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").WithPort("8123/tcp").WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000")
	require.NoError(t, err)

	sink, err := NewSinkFromDSN("clickhouse://" + host + ":" + port.Port() + "?table=runs")
	require.NoError(t, err)
	defer func() {
		if cl, ok := sink.(io.Closer); ok {
			_ = cl.Close()
		}
	}()
	require.NoError(t, sink.Send(ctx, history.Event{
		Type:       history.EventLaunch,
		OccurredAt: time.Now().UTC(),
		Record:     history.Record{Key: "/tmp/PIV_1", PID: 1, Name: "a", FinalNum: 2},
	}))
}
