package caption

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const clientSendBuffer = 8

// Message is the JSON frame pushed to every connected viewer.
type Message struct {
	Seq           int64  `json:"seq"`
	Captured      string `json:"captured"`
	Source        string `json:"source,omitempty"`
	Text          string `json:"text"`
	Failed        bool   `json:"failed,omitempty"`
	LowConfidence bool   `json:"low_confidence,omitempty"`
	LatencyMs     int64  `json:"latency_ms"`
}

// WSServer broadcasts captions to websocket viewers, such as an OBS
// browser overlay. A client that cannot keep up is disconnected; the
// live pipeline never waits for a viewer.
type WSServer struct {
	addr string
	log  zerolog.Logger
	srv  *http.Server

	mu      sync.Mutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan Message
}

func NewWSServer(addr string, logger zerolog.Logger) *WSServer {
	return &WSServer{
		addr:    addr,
		log:     logger,
		clients: make(map[*wsClient]bool),
	}
}

// ListenAndServe blocks until Close. Run it on its own goroutine.
func (s *WSServer) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/captions", s.handleWS)
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *WSServer) Handler() http.HandlerFunc { return s.handleWS }

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws_upgrade_failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan Message, clientSendBuffer)}
	s.mu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Int("viewers", n).Msg("viewer_connected")

	go s.writeLoop(c)

	// Viewers only listen; reads just detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

func (s *WSServer) writeLoop(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			s.drop(c)
			return
		}
	}
	c.conn.Close()
}

func (s *WSServer) drop(c *wsClient) {
	s.mu.Lock()
	if !s.clients[c] {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	s.mu.Unlock()
	close(c.send)
}

func (s *WSServer) Display(ts pipeline.TranslatedSegment) {
	msg := Message{
		Seq:           ts.Sequence,
		Captured:      ts.Captured.UTC().Format(time.RFC3339Nano),
		Source:        ts.SourceText,
		Text:          ts.Translated,
		Failed:        ts.Failed,
		LowConfidence: ts.LowConfidence,
		LatencyMs:     ts.Latency.Milliseconds(),
	}

	// Sends and channel closes are serialized by mu, so a concurrent
	// drop can never close a channel mid-send.
	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("viewer_too_slow")
			delete(s.clients, c)
			close(c.send)
		}
	}
	s.mu.Unlock()
}

func (s *WSServer) Close() error {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}
