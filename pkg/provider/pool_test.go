package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ExecuteUnknownProvider(t *testing.T) {
	p := NewPool(nil)

	res := p.Execute(context.Background(), "ghost", "ping", nil)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "unknown provider")
}

func TestPool_ExecuteLazilyConnects(t *testing.T) {
	p := NewPool(nil)
	conn, _ := newTestConn(t, fakeOpts{tools: pingTools()})
	p.Add(conn)
	defer p.DisconnectAll()

	require.Equal(t, StateDisconnected, conn.State())

	res := p.Execute(context.Background(), "demo", "ping", nil)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, StateConnected, conn.State())
}

func TestPool_CatalogsReportsOfflineInline(t *testing.T) {
	p := NewPool(nil)

	healthy, _ := newTestConn(t, fakeOpts{tools: pingTools()})
	p.Add(healthy)

	broken := NewConnWithDialer("broken", func(ctx context.Context) (Transport, error) {
		return nil, errors.New("spawn failed")
	})
	p.Add(broken)
	defer p.DisconnectAll()

	catalogs := p.Catalogs(context.Background())
	require.Len(t, catalogs, 2)

	assert.Equal(t, "broken", catalogs[0].Provider)
	assert.True(t, catalogs[0].Offline)
	assert.Contains(t, catalogs[0].Error, "spawn failed")

	assert.Equal(t, "demo", catalogs[1].Provider)
	assert.False(t, catalogs[1].Offline)
	assert.Len(t, catalogs[1].Tools, 2)
}

func TestPool_SetRecordsReconciles(t *testing.T) {
	p := NewPool([]Record{
		{Name: "alpha", Command: "alpha-server"},
		{Name: "beta", Command: "beta-server"},
	})
	defer p.DisconnectAll()

	require.Equal(t, []string{"alpha", "beta"}, p.Names())

	p.SetRecords([]Record{
		{Name: "beta", Command: "beta-server", Args: []string{"--v2"}},
		{Name: "gamma", Command: "gamma-server"},
	})

	assert.Equal(t, []string{"beta", "gamma"}, p.Names())
	_, ok := p.Get("alpha")
	assert.False(t, ok)
}

func TestPool_DisconnectAllIdempotent(t *testing.T) {
	p := NewPool(nil)
	conn, _ := newTestConn(t, fakeOpts{tools: pingTools()})
	p.Add(conn)

	require.NoError(t, conn.Connect(context.Background()))

	p.DisconnectAll()
	p.DisconnectAll()
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestPool_SetTimeoutsAppliesToConnections(t *testing.T) {
	p := NewPool(nil)
	conn, _ := newTestConn(t, fakeOpts{tools: pingTools(), silentInit: true})
	p.Add(conn)
	p.SetTimeouts(50*time.Millisecond, time.Second)
	defer p.DisconnectAll()

	start := time.Now()
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPool_StartRefreshValidatesExpression(t *testing.T) {
	p := NewPool(nil)
	defer p.DisconnectAll()

	assert.Error(t, p.StartRefresh("not a cron expr"))
	assert.NoError(t, p.StartRefresh("*/5 * * * *"))
	p.StopRefresh()
	p.StopRefresh()
}
