// Package negotiator implements C6: request/reply negotiation between
// consumers and publishers over the fan-out bus, and the accounted
// session records that negotiation opens.
package negotiator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/metrics"
	"github.com/jordansnyder/maestra-core/internal/registry"
)

const (
	sessionTTL         = 30 * time.Second
	negotiationTimeout = 5 * time.Second

	allSessionsSet = "sessions:all"
)

func bySessionStreamSet(streamID string) string {
	return "sessions:by_stream:" + streamID
}

func sessionKey(id string) string {
	return "session:" + id
}

func requestSubject(streamID string) string {
	return "maestra.stream.request." + streamID
}

// StreamLookup is what the negotiator needs from C5 to verify a stream is
// live before negotiating against it.
type StreamLookup interface {
	Get(ctx context.Context, id string) (*domain.Stream, error)
}

// Bus is the subset of the fan-out bus the negotiator needs: request/reply
// plus best-effort publish for session lifecycle events.
type Bus interface {
	Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error)
	PublishSubject(subject string, payload []byte)
	PublishTopic(topic string, payload []byte)
}

// HistoryStore is the durable sink the negotiator fires session records
// into, fire-and-forget, per §4.4.
type HistoryStore interface {
	WriteSessionHistory(ctx context.Context, rec domain.SessionHistory) error
	CloseSessionHistory(ctx context.Context, sessionID, status, errMessage string, endedAt time.Time, bytesTransferred int64) error
}

type Negotiator struct {
	store   registry.Store
	bus     Bus
	streams StreamLookup
	history HistoryStore
	log     logger.Logger
	metrics *metrics.Metrics
}

func New(store registry.Store, bus Bus, streams StreamLookup, history HistoryStore, log logger.Logger) *Negotiator {
	return &Negotiator{store: store, bus: bus, streams: streams, history: history, log: log}
}

// SetMetrics attaches the negotiation-outcome and active-session
// collectors. Optional: without it the negotiator behaves identically.
func (n *Negotiator) SetMetrics(m *metrics.Metrics) {
	n.metrics = m
}

// Request verifies the stream is live, asks the publisher over request/
// reply with a 5s timeout, and on acceptance opens an accounted session.
func (n *Negotiator) Request(ctx context.Context, streamID string, req domain.NegotiationRequest) (*domain.NegotiationOffer, error) {
	stream, err := n.streams.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("negotiator: encode request: %w", err)
	}

	replyBody, err := n.bus.Request(ctx, requestSubject(streamID), reqBody, negotiationTimeout)
	if err != nil {
		n.metrics.RecordNegotiation("error")

		return nil, err
	}

	var reply domain.NegotiationReply

	if err := json.Unmarshal(replyBody, &reply); err != nil {
		n.metrics.RecordNegotiation("error")

		return nil, apperr.UpstreamRejection("publisher returned a malformed reply")
	}

	if !reply.Accepted {
		reason := reply.Reason
		if reason == "" {
			reason = "publisher rejected the request"
		}

		n.metrics.RecordNegotiation("rejected")

		return nil, apperr.UpstreamRejection(reason)
	}

	session := domain.Session{
		SessionID:        uuid.NewString(),
		StreamID:         streamID,
		PublisherID:      stream.PublisherID,
		PublisherAddress: stream.Address,
		PublisherPort:    stream.Port,
		ConsumerID:       req.ConsumerID,
		ConsumerAddress:  req.ConsumerAddress,
		Protocol:         stream.Protocol,
		TransportConfig:  reply.TransportConfig,
		StartedAt:        time.Now().UTC(),
		Status:           domain.SessionActive,
	}

	if err := n.writeSession(ctx, &session); err != nil {
		return nil, err
	}

	if err := n.store.SAdd(ctx, allSessionsSet, session.SessionID); err != nil {
		return nil, fmt.Errorf("negotiator: index session: %w", err)
	}

	if err := n.store.SAdd(ctx, bySessionStreamSet(streamID), session.SessionID); err != nil {
		return nil, fmt.Errorf("negotiator: index session by stream: %w", err)
	}

	n.metrics.RecordNegotiation("accepted")
	n.metrics.SessionOpened()

	n.publishSessionEvent("session_started", &session)

	if n.history != nil {
		go func() {
			bgCtx := context.Background()

			if err := n.history.WriteSessionHistory(bgCtx, domain.SessionHistory{
				SessionID:   session.SessionID,
				StreamID:    streamID,
				PublisherID: session.PublisherID,
				ConsumerID:  session.ConsumerID,
				Protocol:    session.Protocol,
				StartedAt:   session.StartedAt,
				Status:      domain.SessionActive,
			}); err != nil {
				n.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to write session history")
			}
		}()
	}

	return &domain.NegotiationOffer{
		SessionID:        session.SessionID,
		StreamID:         streamID,
		StreamName:       stream.Name,
		StreamType:       stream.StreamType,
		Protocol:         stream.Protocol,
		PublisherAddress: stream.Address,
		PublisherPort:    stream.Port,
		TransportConfig:  reply.TransportConfig,
	}, nil
}

// Heartbeat extends a session's TTL.
func (n *Negotiator) Heartbeat(ctx context.Context, sessionID string) error {
	if _, err := n.Get(ctx, sessionID); err != nil {
		return err
	}

	if err := n.store.Touch(ctx, sessionKey(sessionID), sessionTTL); err != nil {
		return fmt.Errorf("negotiator: heartbeat: %w", err)
	}

	return nil
}

// Stop removes a session record and writes a closing history update.
func (n *Negotiator) Stop(ctx context.Context, sessionID string) error {
	return n.stop(ctx, sessionID, domain.SessionStopped, "")
}

func (n *Negotiator) stop(ctx context.Context, sessionID, status, errMessage string) error {
	session, err := n.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := n.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("negotiator: stop: %w", err)
	}

	_ = n.store.SRem(ctx, allSessionsSet, sessionID)
	_ = n.store.SRem(ctx, bySessionStreamSet(session.StreamID), sessionID)

	if n.history != nil {
		if err := n.history.CloseSessionHistory(ctx, sessionID, status, errMessage, time.Now().UTC(), 0); err != nil {
			n.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to close session history")
		}
	}

	session.Status = status
	n.publishSessionEvent("session_stopped", session)
	n.metrics.SessionClosed()

	return nil
}

// StopAllForStream cascade-stops every session for a withdrawn stream.
// Satisfies streamreg.SessionStore.
func (n *Negotiator) StopAllForStream(ctx context.Context, streamID string) error {
	ids, err := n.store.SMembers(ctx, bySessionStreamSet(streamID))
	if err != nil {
		return fmt.Errorf("negotiator: list sessions for stream: %w", err)
	}

	for _, id := range ids {
		if err := n.stop(ctx, id, domain.SessionStopped, "stream withdrawn"); err != nil {
			n.log.Warn().Err(err).Str("session_id", id).Msg("failed to cascade-stop session")
		}
	}

	return nil
}

// Get materialises a session record, returning NotFound if it has expired.
func (n *Negotiator) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	fields, ok, err := n.store.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("negotiator: get session: %w", err)
	}

	if !ok {
		return nil, apperr.NotFoundf("session %q not found", sessionID)
	}

	return decodeSession(fields), nil
}

// ListByStream returns live sessions attached to streamID.
func (n *Negotiator) ListByStream(ctx context.Context, streamID string) ([]domain.Session, error) {
	ids, err := n.store.SMembers(ctx, bySessionStreamSet(streamID))
	if err != nil {
		return nil, fmt.Errorf("negotiator: list sessions: %w", err)
	}

	out := make([]domain.Session, 0, len(ids))

	for _, id := range ids {
		s, err := n.Get(ctx, id)
		if err != nil {
			_ = n.store.SRem(ctx, bySessionStreamSet(streamID), id)

			continue
		}

		out = append(out, *s)
	}

	return out, nil
}

func (n *Negotiator) writeSession(ctx context.Context, s *domain.Session) error {
	fields, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("negotiator: encode session: %w", err)
	}

	if err := n.store.Set(ctx, sessionKey(s.SessionID), fields, sessionTTL); err != nil {
		return fmt.Errorf("negotiator: write session: %w", err)
	}

	return nil
}

type sessionEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	StreamID  string        `json:"stream_id"`
	Data      domain.Session `json:"data"`
}

func (n *Negotiator) publishSessionEvent(kind string, s *domain.Session) {
	evt := sessionEvent{Type: kind, SessionID: s.SessionID, StreamID: s.StreamID, Data: *s}

	body, err := json.Marshal(evt)
	if err != nil {
		n.log.Error().Err(err).Msg("failed to encode session event")

		return
	}

	n.bus.PublishSubject("maestra.session."+kind, body)
	n.bus.PublishTopic("maestra.to_mqtt.session."+kind, body)
}

func encodeSession(s *domain.Session) (map[string]string, error) {
	transportConfig, err := json.Marshal(s.TransportConfig)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"session_id":        s.SessionID,
		"stream_id":         s.StreamID,
		"publisher_id":      s.PublisherID,
		"publisher_address": s.PublisherAddress,
		"publisher_port":    strconv.Itoa(s.PublisherPort),
		"consumer_id":       s.ConsumerID,
		"consumer_address":  s.ConsumerAddress,
		"protocol":          s.Protocol,
		"transport_config":  string(transportConfig),
		"started_at":        s.StartedAt.Format(time.RFC3339Nano),
		"status":            s.Status,
	}, nil
}

func decodeSession(fields map[string]string) *domain.Session {
	port, _ := strconv.Atoi(fields["publisher_port"])

	s := &domain.Session{
		SessionID:        fields["session_id"],
		StreamID:         fields["stream_id"],
		PublisherID:      fields["publisher_id"],
		PublisherAddress: fields["publisher_address"],
		PublisherPort:    port,
		ConsumerID:       fields["consumer_id"],
		ConsumerAddress:  fields["consumer_address"],
		Protocol:         fields["protocol"],
		Status:           fields["status"],
	}

	_ = json.Unmarshal([]byte(fields["transport_config"]), &s.TransportConfig)

	if at, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		s.StartedAt = at
	}

	return s
}
