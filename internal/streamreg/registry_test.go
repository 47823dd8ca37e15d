package streamreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/registry"
)

type fakeBus struct {
	subjects []string
	topics   []string
}

func (f *fakeBus) PublishSubject(subject string, _ []byte) { f.subjects = append(f.subjects, subject) }
func (f *fakeBus) PublishTopic(topic string, _ []byte)      { f.topics = append(f.topics, topic) }

type fakeSessions struct {
	stoppedFor []string
}

func (f *fakeSessions) StopAllForStream(_ context.Context, streamID string) error {
	f.stoppedFor = append(f.stoppedFor, streamID)

	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeBus, *fakeSessions) {
	t.Helper()

	store, err := registry.New("")
	require.NoError(t, err)

	bus := &fakeBus{}
	sessions := &fakeSessions{}

	return New(store, bus, sessions, logger.NewTestLogger()), bus, sessions
}

func TestAdvertiseThenGet(t *testing.T) {
	r, bus, _ := newTestRegistry(t)
	ctx := context.Background()

	s, err := r.Advertise(ctx, domain.Stream{Name: "cam1", StreamType: "video", PublisherID: "pub1", Protocol: "ndi"})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "cam1", got.Name)
	require.Contains(t, bus.subjects, "maestra.stream.advertise")
}

func TestListFiltersByType(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Advertise(ctx, domain.Stream{Name: "a", StreamType: "audio", PublisherID: "p1"})
	require.NoError(t, err)
	_, err = r.Advertise(ctx, domain.Stream{Name: "b", StreamType: "video", PublisherID: "p2"})
	require.NoError(t, err)

	audio, err := r.List(ctx, "audio")
	require.NoError(t, err)
	require.Len(t, audio, 1)
	require.Equal(t, "a", audio[0].Name)

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestWithdrawRemovesRecordAndCascadesSessions(t *testing.T) {
	r, _, sessions := newTestRegistry(t)
	ctx := context.Background()

	s, err := r.Advertise(ctx, domain.Stream{Name: "a", StreamType: "audio", PublisherID: "p1"})
	require.NoError(t, err)

	require.NoError(t, r.Withdraw(ctx, s.ID))

	_, err = r.Get(ctx, s.ID)
	require.Error(t, err)
	require.Contains(t, sessions.stoppedFor, s.ID)
}

func TestHeartbeatMissingStreamReturnsNotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.Heartbeat(context.Background(), "missing")
	require.Error(t, err)
}
