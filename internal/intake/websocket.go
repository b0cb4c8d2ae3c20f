// Package intake runs an optional local WebSocket endpoint that streams raw
// accessibility/system events into the observation pipeline. Event producers
// (UI instrumentation, platform hooks) connect and push one JSON frame per
// observation.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/jinruoxinchen/one-unlimit-os/internal/engine"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// observationFrame is the wire shape for one pushed event. Timestamp is
// optional; missing or unparsable timestamps default to receipt time.
type observationFrame struct {
	Kind        string `json:"kind"`
	SourceApp   string `json:"source_app,omitempty"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"` // RFC-3339
}

// IntakeServer accepts WebSocket connections and feeds observations to the
// memory service. Malformed frames are logged and dropped; a bad producer
// never breaks the stream for others.
type IntakeServer struct {
	service  *engine.Service
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer binds addr and prepares the intake endpoint at /observations.
// Call Serve to start accepting connections.
func NewServer(addr string, service *engine.Service) (*IntakeServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &IntakeServer{service: service, listener: ln}

	mux := http.NewServeMux()
	mux.HandleFunc("/observations", s.handleObservations)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Addr returns the bound listen address.
func (s *IntakeServer) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks serving connections until Shutdown is called.
func (s *IntakeServer) Serve() error {
	err := s.httpSrv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes the listener.
func (s *IntakeServer) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleObservations upgrades the connection and reads frames until the
// producer disconnects.
func (s *IntakeServer) handleObservations(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local producers only; the listener binds loopback by default.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("intake: WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	log.Printf("intake: producer connected from %s", r.RemoteAddr)

	for {
		msgType, data, err := conn.Read(r.Context())
		if err != nil {
			// Connection closed.
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		obs, err := decodeFrame(data)
		if err != nil {
			log.Printf("intake: dropping malformed frame: %v", err)
			continue
		}
		s.service.Observe(obs)
	}
}

// decodeFrame parses one wire frame into an observation.
func decodeFrame(data []byte) (types.Observation, error) {
	var frame observationFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.Observation{}, err
	}
	if frame.Kind == "" {
		return types.Observation{}, errors.New("frame has no kind")
	}

	ts := time.Now()
	if frame.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, frame.Timestamp); err == nil {
			ts = parsed
		}
	}

	return types.Observation{
		Timestamp:   ts,
		Kind:        types.EventKind(frame.Kind),
		SourceApp:   frame.SourceApp,
		Text:        frame.Text,
		Description: frame.Description,
	}, nil
}
