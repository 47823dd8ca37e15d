package negotiator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/registry"
)

type fakeStreamLookup struct {
	stream *domain.Stream
}

func (f *fakeStreamLookup) Get(_ context.Context, id string) (*domain.Stream, error) {
	if f.stream == nil || f.stream.ID != id {
		return nil, apperr.NotFoundf("stream %q not found", id)
	}

	return f.stream, nil
}

type fakeBus struct {
	reply   []byte
	replyErr error
	subjects []string
}

func (f *fakeBus) Request(_ context.Context, _ string, _ []byte, _ time.Duration) ([]byte, error) {
	return f.reply, f.replyErr
}
func (f *fakeBus) PublishSubject(subject string, _ []byte) { f.subjects = append(f.subjects, subject) }
func (f *fakeBus) PublishTopic(string, []byte)              {}

type fakeHistory struct {
	written []domain.SessionHistory
	closed  []string
}

func (f *fakeHistory) WriteSessionHistory(_ context.Context, rec domain.SessionHistory) error {
	f.written = append(f.written, rec)

	return nil
}

func (f *fakeHistory) CloseSessionHistory(_ context.Context, sessionID, _, _ string, _ time.Time, _ int64) error {
	f.closed = append(f.closed, sessionID)

	return nil
}

func newTestNegotiator(t *testing.T, stream *domain.Stream, replyAccepted bool) (*Negotiator, *fakeHistory) {
	t.Helper()

	store, err := registry.New("")
	require.NoError(t, err)

	reply, err := json.Marshal(domain.NegotiationReply{Accepted: replyAccepted, TransportConfig: domain.JSON{"codec": "pcm"}})
	require.NoError(t, err)

	bus := &fakeBus{reply: reply}
	history := &fakeHistory{}

	return New(store, bus, &fakeStreamLookup{stream: stream}, history, logger.NewTestLogger()), history
}

func TestRequest_AcceptedOpensSession(t *testing.T) {
	stream := &domain.Stream{ID: "s1", Name: "mic", StreamType: "audio", PublisherID: "pub1", Address: "10.0.0.1", Port: 9000, Protocol: "udp"}
	n, history := newTestNegotiator(t, stream, true)

	offer, err := n.Request(context.Background(), "s1", domain.NegotiationRequest{ConsumerID: "c1", ConsumerAddress: "10.0.0.2"})
	require.NoError(t, err)
	require.Equal(t, "s1", offer.StreamID)
	require.NotEmpty(t, offer.SessionID)
	require.Equal(t, "pcm", offer.TransportConfig["codec"])

	// fire-and-forget history write happens in a goroutine; give it a tick.
	time.Sleep(10 * time.Millisecond)
	require.Len(t, history.written, 1)

	got, err := n.Get(context.Background(), offer.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, got.Status)
}

func TestRequest_RejectedReturnsUpstreamRejection(t *testing.T) {
	stream := &domain.Stream{ID: "s1", PublisherID: "pub1"}
	n, _ := newTestNegotiator(t, stream, false)

	_, err := n.Request(context.Background(), "s1", domain.NegotiationRequest{ConsumerID: "c1"})
	require.Error(t, err)
	require.Equal(t, apperr.KindOf(err), apperr.KindUpstreamRejection)
}

func TestRequest_UnknownStreamReturnsNotFound(t *testing.T) {
	n, _ := newTestNegotiator(t, nil, true)

	_, err := n.Request(context.Background(), "missing", domain.NegotiationRequest{ConsumerID: "c1"})
	require.Error(t, err)
	require.Equal(t, apperr.KindOf(err), apperr.KindNotFound)
}

func TestStop_RemovesSessionAndClosesHistory(t *testing.T) {
	stream := &domain.Stream{ID: "s1", PublisherID: "pub1"}
	n, history := newTestNegotiator(t, stream, true)

	offer, err := n.Request(context.Background(), "s1", domain.NegotiationRequest{ConsumerID: "c1"})
	require.NoError(t, err)

	require.NoError(t, n.Stop(context.Background(), offer.SessionID))
	require.Contains(t, history.closed, offer.SessionID)

	_, err = n.Get(context.Background(), offer.SessionID)
	require.Error(t, err)
}

func TestStopAllForStream_CascadesSessions(t *testing.T) {
	stream := &domain.Stream{ID: "s1", PublisherID: "pub1"}
	n, _ := newTestNegotiator(t, stream, true)

	offer1, err := n.Request(context.Background(), "s1", domain.NegotiationRequest{ConsumerID: "c1"})
	require.NoError(t, err)
	offer2, err := n.Request(context.Background(), "s1", domain.NegotiationRequest{ConsumerID: "c2"})
	require.NoError(t, err)

	require.NoError(t, n.StopAllForStream(context.Background(), "s1"))

	_, err = n.Get(context.Background(), offer1.SessionID)
	require.Error(t, err)
	_, err = n.Get(context.Background(), offer2.SessionID)
	require.Error(t, err)
}
