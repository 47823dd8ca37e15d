// Package streamreg implements C5, the stream registry: advertise,
// withdraw, heartbeat, list, and get operations over the ephemeral store,
// plus the discovery events the rest of the system discovers streams by.
package streamreg

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
	streamTTL = 30 * time.Second

	allStreamsSet = "streams:all"
)

func byTypeSet(streamType string) string {
	return "streams:by_type:" + streamType
}

func streamKey(id string) string {
	return "stream:" + id
}

// Bus is the subset of the fan-out bus the registry needs to publish
// discovery events on both trees.
type Bus interface {
	PublishSubject(subject string, payload []byte)
	PublishTopic(topic string, payload []byte)
}

// SessionStore is what the registry needs from C6's session index to
// cascade-delete sessions on withdraw, without importing the negotiator
// package directly (negotiator imports streamreg, not the reverse).
type SessionStore interface {
	StopAllForStream(ctx context.Context, streamID string) error
}

type Registry struct {
	store    registry.Store
	bus      Bus
	sessions SessionStore
	log      logger.Logger
	metrics  *metrics.Metrics
}

func New(store registry.Store, bus Bus, sessions SessionStore, log logger.Logger) *Registry {
	return &Registry{store: store, bus: bus, sessions: sessions, log: log}
}

// SetMetrics attaches the active-stream gauge. Optional: without it the
// registry behaves identically.
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Advertise allocates a stream id, writes its record with a 30s TTL,
// indexes it, and publishes a discovery event on both fan-out trees.
func (r *Registry) Advertise(ctx context.Context, s domain.Stream) (*domain.Stream, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	s.AdvertisedAt, s.LastHeartbeat = now, now

	if err := r.writeRecord(ctx, &s); err != nil {
		return nil, err
	}

	if err := r.store.SAdd(ctx, allStreamsSet, s.ID); err != nil {
		return nil, fmt.Errorf("streamreg: index stream: %w", err)
	}

	if err := r.store.SAdd(ctx, byTypeSet(s.StreamType), s.ID); err != nil {
		return nil, fmt.Errorf("streamreg: index stream by type: %w", err)
	}

	r.metrics.StreamAdvertised()

	r.publishDiscovery("advertise", &s)

	return &s, nil
}

// Withdraw deletes a stream's record and indices and cascade-deletes its
// sessions.
func (r *Registry) Withdraw(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, streamKey(id)); err != nil {
		return fmt.Errorf("streamreg: withdraw: %w", err)
	}

	_ = r.store.SRem(ctx, allStreamsSet, id)
	_ = r.store.SRem(ctx, byTypeSet(s.StreamType), id)

	if r.sessions != nil {
		if err := r.sessions.StopAllForStream(ctx, id); err != nil {
			r.log.Warn().Err(err).Str("stream_id", id).Msg("failed to cascade-stop sessions on withdraw")
		}
	}

	r.metrics.StreamWithdrawn()

	r.publishDiscovery("withdraw", s)

	return nil
}

// Heartbeat extends a stream's TTL and rewrites last_heartbeat, re-emitting
// the advertise payload to the MQTT mirror so late joiners can discover it.
func (r *Registry) Heartbeat(ctx context.Context, id string) (*domain.Stream, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.LastHeartbeat = time.Now().UTC()

	if err := r.writeRecord(ctx, s); err != nil {
		return nil, err
	}

	r.publishDiscovery("advertise", s)

	return s, nil
}

// Get materialises a stream record, returning NotFound if it has expired
// or never existed.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Stream, error) {
	fields, ok, err := r.store.HGetAll(ctx, streamKey(id))
	if err != nil {
		return nil, fmt.Errorf("streamreg: get: %w", err)
	}

	if !ok {
		return nil, apperr.NotFoundf("stream %q not found", id)
	}

	return decodeStream(fields)
}

// List materialises every live stream, optionally filtered by type,
// dropping stale index entries for records that have since expired.
func (r *Registry) List(ctx context.Context, streamType string) ([]domain.Stream, error) {
	set := allStreamsSet
	if streamType != "" {
		set = byTypeSet(streamType)
	}

	ids, err := r.store.SMembers(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("streamreg: list: %w", err)
	}

	out := make([]domain.Stream, 0, len(ids))

	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			// Expired record: the index entry is stale, drop it.
			_ = r.store.SRem(ctx, set, id)
			_ = r.store.SRem(ctx, allStreamsSet, id)

			continue
		}

		out = append(out, *s)
	}

	return out, nil
}

func (r *Registry) writeRecord(ctx context.Context, s *domain.Stream) error {
	fields, err := encodeStream(s)
	if err != nil {
		return fmt.Errorf("streamreg: encode: %w", err)
	}

	if err := r.store.Set(ctx, streamKey(s.ID), fields, streamTTL); err != nil {
		return fmt.Errorf("streamreg: write: %w", err)
	}

	return nil
}

type discoveryEvent struct {
	Type       string `json:"type"`
	StreamID   string `json:"stream_id"`
	StreamType string `json:"stream_type"`
	Name       string `json:"name"`
	Data       domain.Stream `json:"data,omitempty"`
}

func (r *Registry) publishDiscovery(kind string, s *domain.Stream) {
	evt := discoveryEvent{Type: kind, StreamID: s.ID, StreamType: s.StreamType, Name: s.Name, Data: *s}

	body, err := json.Marshal(evt)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode stream discovery event")

		return
	}

	subjects := []string{
		"maestra.stream." + kind,
		"maestra.stream." + kind + "." + s.StreamType,
	}
	topics := []string{
		"maestra.to_mqtt.stream." + kind,
		"maestra.to_mqtt.stream." + kind + "." + s.StreamType,
	}

	for _, subj := range subjects {
		r.bus.PublishSubject(subj, body)
	}

	for _, t := range topics {
		r.bus.PublishTopic(t, body)
	}
}

// encodeStream/decodeStream flatten a Stream to/from the string-valued
// hash fields the ephemeral store's five primitives operate on.
func encodeStream(s *domain.Stream) (map[string]string, error) {
	config, err := json.Marshal(s.Config)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"id":              s.ID,
		"name":            s.Name,
		"stream_type":     s.StreamType,
		"publisher_id":    s.PublisherID,
		"protocol":        s.Protocol,
		"address":         s.Address,
		"port":            strconv.Itoa(s.Port),
		"entity_id":       s.EntityID,
		"device_id":       s.DeviceID,
		"config":          string(config),
		"metadata":        string(metadata),
		"advertised_at":   s.AdvertisedAt.Format(time.RFC3339Nano),
		"last_heartbeat":  s.LastHeartbeat.Format(time.RFC3339Nano),
	}, nil
}

func decodeStream(fields map[string]string) (*domain.Stream, error) {
	port, _ := strconv.Atoi(fields["port"])

	s := &domain.Stream{
		ID:          fields["id"],
		Name:        fields["name"],
		StreamType:  fields["stream_type"],
		PublisherID: fields["publisher_id"],
		Protocol:    fields["protocol"],
		Address:     fields["address"],
		Port:        port,
		EntityID:    fields["entity_id"],
		DeviceID:    fields["device_id"],
	}

	_ = json.Unmarshal([]byte(fields["config"]), &s.Config)
	_ = json.Unmarshal([]byte(fields["metadata"]), &s.Metadata)

	if at, err := time.Parse(time.RFC3339Nano, fields["advertised_at"]); err == nil {
		s.AdvertisedAt = at
	}

	if at, err := time.Parse(time.RFC3339Nano, fields["last_heartbeat"]); err == nil {
		s.LastHeartbeat = at
	}

	return s, nil
}
