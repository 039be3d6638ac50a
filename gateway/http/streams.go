package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c360/marinestreams/delta"
	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/security"
	"github.com/c360/marinestreams/stream"
	"github.com/c360/marinestreams/stream/wsconn"
)

// Hello is the first message on the delta websocket.
type Hello struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Self      string   `json:"self"`
	Roles     []string `json:"roles"`
	Timestamp string   `json:"timestamp"`
}

func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityRead); !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Streams.Streams())
}

// streamUpgrade serves /signalk/v2/api/streams/<stream id>; the id may span
// several path segments and is URL-decoded.
func (s *Server) streamUpgrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(id)
		if err != nil {
			http.Error(w, "invalid stream id", http.StatusBadRequest)
			return
		}
		id = decoded
	}
	if id == "" {
		http.NotFound(w, r)
		return
	}
	s.serveStream(w, r, id)
}

// radarUpgrade is the alias for radars/<id>.
func (s *Server) radarUpgrade(w http.ResponseWriter, r *http.Request) {
	s.serveStream(w, r, "radars/"+chi.URLParam(r, "id"))
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, streamID string) {
	p, err := s.deps.Security.Authorize(r, security.CapabilityStreams)
	if err != nil {
		s.logger.Debug("Stream authorization failed", "stream", streamID, "error", err)
		status := errors.HTTPStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	principal := stream.Principal{Identifier: p.Identifier}
	if principal.Identifier == "" {
		principal.Identifier = security.Unknown
	}

	conn, err := wsconn.Upgrade(w, r, &s.upgrader,
		wsconn.WithWriteTimeout(s.cfg.WriteTimeout),
		wsconn.WithPingInterval(s.cfg.PingInterval),
		wsconn.WithQueueFrames(s.cfg.StreamQueueFrames),
		wsconn.WithLogger(s.logger))
	if err != nil {
		s.logger.Debug("Stream upgrade failed", "stream", streamID, "error", err)
		return
	}

	s.deps.Streams.AddClient(streamID, conn, principal)
	s.logger.Info("Stream client connected", "stream", streamID, "principal", principal.Identifier)

	go func() {
		<-conn.Done()
		s.deps.Streams.RemoveClient(streamID, conn)
		s.logger.Info("Stream client disconnected", "stream", streamID, "principal", principal.Identifier)
	}()
}

// deltaStream sends a hello followed by every delta published on the hub.
func (s *Server) deltaStream(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Security.Authorize(r, security.CapabilityRead); err != nil {
		status := errors.HTTPStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := wsconn.Upgrade(w, r, &s.upgrader,
		wsconn.WithTextMessages(),
		wsconn.WithWriteTimeout(s.cfg.WriteTimeout),
		wsconn.WithPingInterval(s.cfg.PingInterval),
		wsconn.WithLogger(s.logger))
	if err != nil {
		s.logger.Debug("Delta stream upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := s.deps.Hub.Subscribe(ctx, s.cfg.DeltaQueueSize)

	hello, _ := json.Marshal(Hello{
		Name:      SystemName,
		Version:   s.cfg.Version,
		Self:      string(delta.SelfContext),
		Roles:     []string{"master", "main"},
		Timestamp: time.Now().UTC().Format(delta.TimestampFormat),
	})
	_ = conn.Send(hello)

	go func() {
		defer cancel()
		for {
			select {
			case <-conn.Done():
				return
			case d, ok := <-sub.C():
				if !ok {
					_ = conn.Close(stream.CloseGoingAway, "Server shutting down")
					return
				}
				data, err := json.Marshal(d)
				if err != nil {
					s.logger.Warn("Delta encoding failed", "error", err)
					continue
				}
				if err := conn.Send(data); err != nil {
					s.logger.Debug("Delta dropped for client", "subscription", sub.ID(), "error", err)
				}
			}
		}
	}()
}
