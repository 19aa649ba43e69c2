package usecase

import (
	"context"
	"errors"
	"testing"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCommitsView(t *testing.T) {
	session := NewSession(func(ctx context.Context, spec domain.FilterSpec) (*View, error) {
		return &View{Fingerprint: spec.Fingerprint()}, nil
	}, logger.Discard(), metrics.New(prometheus.NewRegistry()))

	assert.Nil(t, session.Current())

	view, err := session.Apply(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)
	assert.Same(t, view, session.Current())
	assert.Equal(t, uint64(1), session.Generation())
}

func TestSessionDiscardsSupersededCycle(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	started := make(chan struct{})

	session := NewSession(func(ctx context.Context, spec domain.FilterSpec) (*View, error) {
		if len(spec.Accounts) > 0 && spec.Accounts[0] == "slow" {
			close(started)
			<-ctx.Done()
			return &View{Fingerprint: "slow"}, nil
		}
		return &View{Fingerprint: "fast"}, nil
	}, logger.Discard(), m)

	type result struct {
		view *View
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		view, err := session.Apply(context.Background(), domain.FilterSpec{Accounts: []string{"slow"}})
		slow <- result{view, err}
	}()

	<-started
	view, err := session.Apply(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, "fast", view.Fingerprint)

	res := <-slow
	assert.Nil(t, res.view)
	assert.ErrorIs(t, res.err, domain.ErrStaleCycle)

	assert.Equal(t, "fast", session.Current().Fingerprint)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleCycles))
}

func TestSessionKeepsViewOnError(t *testing.T) {
	fail := false
	session := NewSession(func(ctx context.Context, spec domain.FilterSpec) (*View, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &View{Fingerprint: "ok"}, nil
	}, logger.Discard(), metrics.New(prometheus.NewRegistry()))

	_, err := session.Apply(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)

	fail = true
	_, err = session.Apply(context.Background(), domain.FilterSpec{})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "ok", session.Current().Fingerprint)
}

func TestLiveCycleFetchesFilterWindow(t *testing.T) {
	env := newTestEnv(t)
	from, to := day("2024-03-01"), day("2024-03-01")

	view, err := LiveCycle(env.ingest, env.dashboard)(context.Background(), domain.FilterSpec{From: &from, To: &to})
	require.NoError(t, err)

	require.Len(t, env.ads.windows, 1)
	assert.Equal(t, domain.Window{Since: from, Until: to}, env.ads.windows[0])
	assert.Equal(t, 2, view.KPI.Records)
	assert.Equal(t, 4, view.Quality.Records)
}

func TestSnapshotCycle(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)

	session := NewSession(SnapshotCycle(env.dashboard), logger.Discard(), env.metrics)
	view, err := session.Apply(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 4, view.KPI.Records)
}
