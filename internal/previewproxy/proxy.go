// Package previewproxy implements C7: a per-connection UDP consumer that
// negotiates a session through C6, decodes the stream's datagrams, and
// re-emits them to a browser as a Server-Sent-Events stream.
package previewproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/previewdecode"
)

const (
	connectionInfoHeartbeat = 15 * time.Second
	datagramReadTimeout     = 5 * time.Second
	staleSessionThreshold   = 10 * time.Second
)

// StreamLookup is what the proxy needs from C5.
type StreamLookup interface {
	Get(ctx context.Context, id string) (*domain.Stream, error)
}

// Negotiator is what the proxy needs from C6: negotiate a consumer
// session, keep it alive, and close it on exit.
type Negotiator interface {
	Request(ctx context.Context, streamID string, req domain.NegotiationRequest) (*domain.NegotiationOffer, error)
	Heartbeat(ctx context.Context, sessionID string) error
	Stop(ctx context.Context, sessionID string) error
}

type Proxy struct {
	streams    StreamLookup
	negotiator Negotiator
	log        logger.Logger
}

func New(streams StreamLookup, negotiator Negotiator, log logger.Logger) *Proxy {
	return &Proxy{streams: streams, negotiator: negotiator, log: log}
}

// Serve handles GET /streams/{id}/preview. It blocks for the lifetime of
// the SSE connection.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, streamID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)

		return
	}

	ctx := r.Context()

	stream, err := p.streams.Get(ctx, streamID)
	if err != nil {
		http.Error(w, "stream not found", http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if domain.ConnectionInfoStreamTypes[stream.StreamType] {
		p.serveConnectionInfo(ctx, w, flusher, stream)

		return
	}

	p.serveProxyable(ctx, w, flusher, stream)
}

// serveConnectionInfo handles point-to-point high-bandwidth types: no data
// plane, just an info event and a heartbeat cadence.
func (p *Proxy) serveConnectionInfo(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, stream *domain.Stream) {
	writeSSE(w, flusher, "info", domain.JSON{
		"stream_id":   stream.ID,
		"stream_type": stream.StreamType,
		"protocol":    stream.Protocol,
		"address":     stream.Address,
		"port":        stream.Port,
	})

	ticker := time.NewTicker(connectionInfoHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeSSE(w, flusher, "heartbeat", domain.JSON{"stream_id": stream.ID})
		}
	}
}

// serveProxyable handles the low-bandwidth decode-and-relay path: bind a
// UDP socket, negotiate as a consumer, decode datagrams, and emit preview
// events, keeping the session alive as long as the client is connected.
func (p *Proxy) serveProxyable(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, stream *domain.Stream) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		writeSSE(w, flusher, "error", domain.JSON{"message": "failed to bind udp socket"})

		return
	}
	defer conn.Close()

	localAddr, _ := conn.LocalAddr().(*net.UDPAddr)

	consumerID := fmt.Sprintf("dashboard-preview-%s", shortID(stream.ID))

	offer, err := p.negotiator.Request(ctx, stream.ID, domain.NegotiationRequest{
		ConsumerID:      consumerID,
		ConsumerAddress: bestEffortLANIP(),
		ConsumerPort:    localAddr.Port,
	})
	if err != nil {
		writeSSE(w, flusher, "error", domain.JSON{"message": err.Error()})

		return
	}

	defer func() {
		if err := p.negotiator.Stop(ctx, offer.SessionID); err != nil {
			p.log.Warn().Err(err).Str("session_id", offer.SessionID).Msg("failed to stop preview session on exit")
		}
	}()

	writeSSE(w, flusher, "info", domain.JSON{
		"session_id":        offer.SessionID,
		"stream_id":         offer.StreamID,
		"stream_name":       offer.StreamName,
		"stream_type":       offer.StreamType,
		"publisher_address": offer.PublisherAddress,
		"publisher_port":    offer.PublisherPort,
	})

	p.relayLoop(ctx, w, flusher, conn, stream.StreamType, offer.SessionID)
}

func (p *Proxy) relayLoop(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conn *net.UDPConn, streamType, sessionID string) {
	buf := make([]byte, 65536)
	lastHeartbeat := time.Now()
	seq := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(datagramReadTimeout))

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if time.Since(lastHeartbeat) > staleSessionThreshold {
					if err := p.negotiator.Heartbeat(ctx, sessionID); err != nil {
						p.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to refresh preview session")
					}

					writeSSE(w, flusher, "heartbeat", domain.JSON{"session_id": sessionID})

					lastHeartbeat = time.Now()
				}

				continue
			}

			writeSSE(w, flusher, "error", domain.JSON{"message": err.Error()})

			return
		}

		decoded := previewdecode.Decode(streamType, buf[:n])
		decoded["_seq"] = seq
		seq++

		writeSSE(w, flusher, "preview", decoded)

		// Datagrams keep arriving: refresh the session on the same cadence.
		if time.Since(lastHeartbeat) > staleSessionThreshold {
			if err := p.negotiator.Heartbeat(ctx, sessionID); err != nil {
				p.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to refresh preview session")
			}

			lastHeartbeat = time.Now()
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data domain.JSON) {
	body, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	flusher.Flush()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}

	return id[:8]
}

// bestEffortLANIP returns the first non-loopback IPv4 address found on
// the host, or "127.0.0.1" if none is found.
func bestEffortLANIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}

		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}

	return "127.0.0.1"
}
