package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/umfhero/pixel-agents/internal/protocol"
)

// activitybot stands in for an editor: it feeds random activity into the
// host endpoint and logs the statuses a surface sees.
func main() {
	var (
		hostURL    = flag.String("host_url", "ws://127.0.0.1:8080/v1/host", "activity feed ws url")
		surfaceURL = flag.String("surface_url", "ws://127.0.0.1:8080/v1/surface", "surface ws url (empty to skip)")
		every      = flag.Duration("every", 2*time.Second, "mean delay between activity events")
		addAgent   = flag.Bool("add_agent", true, "create an agent on connect")
		seed       = flag.Int64("seed", 0, "random seed (0: time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	host, _, err := websocket.DefaultDialer.Dial(*hostURL, nil)
	if err != nil {
		logger.Fatalf("dial host: %v", err)
	}
	defer host.Close()

	if *surfaceURL != "" {
		surface, _, err := websocket.DefaultDialer.Dial(*surfaceURL, nil)
		if err != nil {
			logger.Fatalf("dial surface: %v", err)
		}
		defer surface.Close()
		send(surface, logger, protocol.WebviewReady{})
		if *addAgent {
			send(surface, logger, protocol.AddAgent{})
		}
		go watchSurface(surface, logger)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))
	mean := *every
	for {
		wait := time.Duration(r.Int63n(int64(2*mean) + 1))
		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
		m := randomActivity(r)
		logger.Printf("-> %s", m.Kind())
		if !send(host, logger, m) {
			return
		}
	}
}

func randomActivity(r *rand.Rand) protocol.Message {
	switch r.Intn(6) {
	case 0, 1:
		return protocol.TextInserted{}
	case 2:
		return protocol.SelectionChanged{Lines: 1 + r.Intn(12)}
	case 3:
		return protocol.FocusChanged{}
	case 4:
		return protocol.TerminalChanged{}
	default:
		return protocol.TerminalOutput{}
	}
}

func send(conn *websocket.Conn, logger *log.Logger, m protocol.Message) bool {
	b, err := protocol.Encode(m)
	if err != nil {
		logger.Printf("encode %s: %v", m.Kind(), err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Printf("send %s: %v", m.Kind(), err)
		return false
	}
	return true
}

func watchSurface(conn *websocket.Conn, logger *log.Logger) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		m, err := protocol.Decode(b)
		if err != nil {
			continue
		}
		switch msg := m.(type) {
		case protocol.AgentCreated:
			logger.Printf("agent %d created", msg.ID)
		case protocol.AgentStatus:
			logger.Printf("agent %d is %s", msg.ID, msg.Status)
		case protocol.Notice:
			logger.Printf("notice %s: %s", msg.Code, msg.Message)
		case protocol.ActionRejected:
			logger.Printf("rejected %s: %s %s", msg.Action, msg.Code, msg.Message)
		}
	}
}
