// Package dashboard serves the read-only observer feed: a loopback
// bootstrap endpoint plus a websocket that pushes one message per executed
// turn.
package dashboard

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"talecraft.ai/internal/dashboardproto"
	"talecraft.ai/internal/sim/engine"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/schema"
	"talecraft.ai/internal/sim/timeline"
)

type Server struct {
	engine   *engine.Engine
	store    *entities.Store
	library  *schema.Library
	playerSt *player.State
	timeline *timeline.Log
	session  string
	log      *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]client
}

type client struct {
	out      chan []byte
	lookback int
}

func NewServer(e *engine.Engine, st *entities.Store, lib *schema.Library, ps *player.State, tl *timeline.Log, session string, logger *log.Logger) *Server {
	return &Server{
		engine:   e,
		store:    st,
		library:  lib,
		playerSt: ps,
		timeline: tl,
		session:  session,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[uint64]client{},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		st := s.playerSt.Status()
		info := dashboardproto.PlayerInfo{
			Health: st.Health, MaxHealth: st.MaxHealth,
			Energy: st.Energy, MaxEnergy: st.MaxEnergy,
		}
		for _, name := range s.playerSt.StatNames() {
			stat, _ := s.playerSt.Stat(name)
			info.Stats = append(info.Stats, dashboardproto.StatInfo{
				Name: name, Value: stat.Value, Tier: stat.Tier, TierName: stat.TierName(),
			})
		}

		resp := dashboardproto.BootstrapResponse{
			ProtocolVersion: dashboardproto.Version,
			SessionID:       s.session,
			Turn:            s.engine.CurrentTurn(),
			Phase:           s.engine.CurrentPhase().String(),
			LibraryDigest:   s.library.Digest(),
			EntityCounts: map[string]int{
				string(entities.KindLocation): s.store.Count(entities.KindLocation),
				string(entities.KindNPC):      s.store.Count(entities.KindNPC),
				string(entities.KindItem):     s.store.Count(entities.KindItem),
			},
			Player: info,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// Broadcast pushes one turn message to every subscriber. Hook this up to
// the engine's turn callback. Slow clients are dropped, not waited for.
func (s *Server) Broadcast(res engine.TurnResult) {
	var events []string
	for _, e := range s.timeline.Query(timeline.Query{Window: timeline.TurnOnly(res.Turn)}) {
		events = append(events, e.Text)
	}
	msg := dashboardproto.TurnMsg{
		Type:              "TURN",
		ProtocolVersion:   dashboardproto.Version,
		Turn:              res.Turn,
		NextTurn:          res.NextTurn,
		Progression:       res.Progression,
		Goal:              res.Goal,
		SpawnedIDs:        res.SpawnedIDs,
		Moved:             res.Moved,
		AttributesChanged: res.AttributesChanged,
		Skipped:           len(res.Skipped),
		Events:            events,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.out <- b:
		default:
			// Slow consumer; drop the connection rather than the turn order.
			close(c.out)
			delete(s.clients, id)
		}
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub dashboardproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != dashboardproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		id := s.nextID.Add(1)
		out := make(chan []byte, 32)
		s.mu.Lock()
		s.clients[id] = client{out: out, lookback: sub.TimelineLookback}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			if c, ok := s.clients[id]; ok {
				close(c.out)
				delete(s.clients, id)
			}
			s.mu.Unlock()
		}()

		if s.log != nil {
			s.log.Printf("dashboard client %d connected from %s", id, r.RemoteAddr)
		}

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
			writeErr <- nil
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd dashboardproto.SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != dashboardproto.Version {
				continue
			}
			normalizeSubscribe(&upd)
			s.mu.Lock()
			if c, ok := s.clients[id]; ok {
				c.lookback = upd.TimelineLookback
				s.clients[id] = c
			}
			s.mu.Unlock()
		}

		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ClientCount reports currently subscribed dashboard connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func normalizeSubscribe(sub *dashboardproto.SubscribeMsg) {
	if sub.TimelineLookback <= 0 {
		sub.TimelineLookback = 3
	}
	if sub.TimelineLookback > 20 {
		sub.TimelineLookback = 20
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
