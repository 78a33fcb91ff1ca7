// Package stream forwards build lifecycle events to WebSocket clients as JSON
// messages. It is a third observer next to the reporter and the auditor: it
// keeps no build state and never blocks the host when a client is slow.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/conneroisu/buildlens/internal/logging"
)

// DefaultName is the tap name used when Options.Name is empty.
const DefaultName = "EventStreamer"

// Message types beyond the hook event kinds.
const (
	TypeAssetAudit = "assetAudit"
)

const (
	sendBuffer      = 64
	broadcastBuffer = 256
	writeTimeout    = 10 * time.Second
)

// Message is the envelope written to every client.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Options configures a Streamer.
type Options struct {
	Name string
	// OriginPatterns are host patterns accepted in the Origin header.
	// Requests from the serving host itself are always accepted.
	OriginPatterns []string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Streamer broadcasts hook events to connected WebSocket clients.
//
// A single hub goroutine owns client registration and fan-out. Clients whose
// send buffer is full are dropped rather than slowing down the broadcast.
type Streamer struct {
	name           string
	originPatterns []string
	logger         logging.Logger
	now            func() time.Time

	clients      map[*client]struct{}
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates a Streamer and starts its hub.
func New(opts Options, logger logging.Logger) *Streamer {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Streamer{
		name:           opts.Name,
		originPatterns: opts.OriginPatterns,
		logger:         logger.WithComponent(opts.Name),
		now:            time.Now,
		clients:        make(map[*client]struct{}),
		broadcast:      make(chan []byte, broadcastBuffer),
		register:       make(chan *client, 32),
		unregister:     make(chan *client, 32),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	go s.runHub()

	return s
}

// Attach taps every lifecycle hook of p.
func (s *Streamer) Attach(p hooks.Pipeline) {
	p.CompileStart().Tap(s.name, func(ev hooks.CompileStarted) {
		s.publish(hooks.EventCompileStarted.String(), startedData{Time: ev.Time})
	})
	p.CompileFinish().Tap(s.name, func(ev hooks.CompileFinished) {
		s.publish(hooks.EventCompileFinished.String(), finishedData{
			StartTime:   ev.StartTime,
			EndTime:     ev.EndTime,
			DurationMs:  ev.Duration().Milliseconds(),
			OutputFiles: ev.OutputFileCount(),
		})
	})
	p.CompileFailed().Tap(s.name, func(ev hooks.CompileFailed) {
		s.publish(hooks.EventCompileFailed.String(), failedData{Message: ev.Message})
	})
	p.FileInvalidated().Tap(s.name, func(ev hooks.FileInvalidated) {
		s.publish(hooks.EventFileInvalidated.String(), invalidatedData{
			File:       ev.FileName,
			ChangeTime: ev.ChangeTime,
		})
	})
}

// PublishSummary forwards an asset audit. It has the shape of an
// audit summary handler.
func (s *Streamer) PublishSummary(summary audit.Summary) {
	s.publish(TypeAssetAudit, summary)
}

type startedData struct {
	Time time.Time `json:"time"`
}

type finishedData struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	DurationMs  int64     `json:"durationMs"`
	OutputFiles int       `json:"outputFiles"`
}

type failedData struct {
	Message string `json:"message"`
}

type invalidatedData struct {
	File       string    `json:"file"`
	ChangeTime time.Time `json:"changeTime"`
}

// publish queues a message without blocking; it is dropped when the
// broadcast queue is full or the streamer is shut down.
func (s *Streamer) publish(kind string, data any) {
	payload, err := json.Marshal(Message{Type: kind, Timestamp: s.now(), Data: data})
	if err != nil {
		s.logger.Warn(s.ctx, err, "failed to encode stream message", "type", kind)
		return
	}

	select {
	case <-s.ctx.Done():
		return
	default:
	}

	select {
	case s.broadcast <- payload:
	default:
		s.logger.Debug(s.ctx, "broadcast queue full, dropping message", "type", kind)
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// disconnects or the streamer shuts down.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the response.
		s.logger.Warn(r.Context(), err, "websocket upgrade rejected", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case s.register <- c:
	case <-s.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.logger.Debug(r.Context(), "stream client connected", "remote", r.RemoteAddr)

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(s.ctx)
	s.writeLoop(ctx, c)

	select {
	case s.unregister <- c:
	case <-s.ctx.Done():
	}
	if s.ctx.Err() != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	} else {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (s *Streamer) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				s.logger.Debug(ctx, "stream write failed", "error", err.Error())
				return
			}
		}
	}
}

func (s *Streamer) runHub() {
	defer close(s.done)
	for {
		select {
		case c := <-s.register:
			s.clientsMutex.Lock()
			s.clients[c] = struct{}{}
			s.clientsMutex.Unlock()

		case c := <-s.unregister:
			s.drop(c)

		case message := <-s.broadcast:
			s.clientsMutex.RLock()
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.clientsMutex.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- message:
				default:
					s.logger.Debug(s.ctx, "stream client too slow, disconnecting")
					s.drop(c)
				}
			}

		case <-s.ctx.Done():
			s.clientsMutex.Lock()
			for c := range s.clients {
				close(c.send)
			}
			s.clients = make(map[*client]struct{})
			s.clientsMutex.Unlock()
			return
		}
	}
}

// drop removes c and closes its send channel, which ends its write loop.
func (s *Streamer) drop(c *client) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (s *Streamer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// Shutdown stops the hub and disconnects every client. It waits for the hub
// to exit or for ctx to expire.
func (s *Streamer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.cancel)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
