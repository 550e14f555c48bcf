package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oleksiiilienko/hostfacts/internal/worker"
)

type healthResponse struct {
	Status      string        `json:"status"`
	Service     string        `json:"service"`
	AcceptMode  string        `json:"accept_mode"`
	ActiveConns int           `json:"active_conns"`
	HandlerPool *worker.Stats `json:"handler_pool,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AdminHandler serves /health, /metrics and /ws. /ws answers one request
// document per websocket text message with the same endpoint as the TCP
// listener.
func (s *Server) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := healthResponse{
			Status:      "ok",
			Service:     s.endpoint.Name(),
			AcceptMode:  s.cfg.AcceptMode,
			ActiveConns: s.ActiveConns(),
		}
		if s.pool != nil {
			stats := s.pool.Stats()
			health.HandlerPool = &stats
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade", "err", err)
		return
	}
	defer conn.Close()

	tc, ok := s.track(conn.NetConn())
	if !ok {
		return
	}
	defer s.untrack(tc.id)
	s.metrics.wsOpened()
	s.metrics.connOpened()
	defer s.metrics.connClosed()

	log := s.logger.With("conn", tc.id, "remote", r.RemoteAddr, "transport", "websocket")
	conn.SetReadLimit(int64(s.cfg.BufferSize))

	for {
		if d := s.IdleTimeout(); d > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d))
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("websocket closed", "err", err)
			return
		}
		if msgType != websocket.TextMessage {
			s.metrics.request(resultDecodeError, 0)
			log.Info("dropping non-text message")
			return
		}

		start := time.Now()
		state := StateDecoding
		out, err := Handle(r.Context(), s.endpoint, data, func(st ConnState) { state = st })
		if err != nil {
			s.handler.handleFailed(log, state, err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			s.metrics.request(resultWriteError, 0)
			log.Warn("write response failed", "err", newError(KindIO, "write", err))
			return
		}
		s.metrics.request(resultOK, time.Since(start).Seconds())
	}
}
