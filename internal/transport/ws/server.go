package ws

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/umfhero/pixel-agents/internal/office"
	"github.com/umfhero/pixel-agents/internal/protocol"
)

// Hub is the part of the office a connection talks to.
type Hub interface {
	Join() chan<- office.SurfaceJoin
	Leave() chan<- string
	Inbox() chan<- office.SurfaceMessage
	Activity() chan<- protocol.Message
	Done() <-chan struct{}
}

type Server struct {
	hub Hub
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// OutQueue is the per-surface outbound frame buffer.
	OutQueue int
	// AllowRemoteHost accepts activity feeds from non-loopback peers.
	AllowRemoteHost bool
}

func NewServer(h Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		hub:      h,
		log:      logger,
		OutQueue: 256,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// SurfaceHandler serves one rendering surface per connection.
func (s *Server) SurfaceHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		out := make(chan []byte, s.OutQueue)
		select {
		case s.hub.Join() <- office.SurfaceJoin{ID: sid, Out: out}:
		case <-s.hub.Done():
			closeWith(conn, websocket.CloseGoingAway, "office stopped")
			return
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer func() {
			select {
			case s.hub.Leave() <- sid:
			case <-s.hub.Done():
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msg, err := protocol.Decode(raw)
			if err != nil {
				s.queueNotice(out, sid, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			if !s.route(ctx, sid, msg) {
				break
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// route hands a decoded message to the office. It reports false once the
// office has stopped.
func (s *Server) route(ctx context.Context, sid string, msg protocol.Message) bool {
	if msg.Kind().Direction() == protocol.FromHost {
		select {
		case s.hub.Activity() <- msg:
		default:
			s.log.Printf("surface %s: activity queue full, dropped %s", sid, msg.Kind())
		}
		return true
	}
	select {
	case s.hub.Inbox() <- office.SurfaceMessage{From: sid, Msg: msg}:
		return true
	case <-s.hub.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Server) queueNotice(out chan []byte, sid, code, text string) {
	b, err := protocol.Encode(protocol.Notice{Level: protocol.LevelError, Code: code, Message: text})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		s.log.Printf("surface %s: queue full, dropped notice %s", sid, code)
	}
}

// HostHandler serves the editor activity feed. It accepts only activity
// messages and never receives frames from the office.
func (s *Server) HostHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemoteHost && !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msg, err := protocol.Decode(raw)
			if err != nil {
				_ = writeMessage(conn, protocol.Notice{Level: protocol.LevelError, Code: protocol.ErrProtoBadRequest, Message: err.Error()})
				continue
			}
			if msg.Kind().Direction() != protocol.FromHost {
				_ = writeMessage(conn, protocol.Notice{
					Level:   protocol.LevelError,
					Code:    protocol.ErrBadRequest,
					Message: fmt.Sprintf("%s is not an activity message", msg.Kind()),
				})
				continue
			}
			select {
			case s.hub.Activity() <- msg:
			case <-s.hub.Done():
				closeWith(conn, websocket.CloseGoingAway, "office stopped")
				return
			}
		}
		closeWith(conn, websocket.CloseNormalClosure, "bye")
	}
}

func writeMessage(conn *websocket.Conn, m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// IsLoopbackRemote reports whether an http.Request RemoteAddr is a loopback peer.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
