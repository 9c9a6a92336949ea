package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12
)

type wsEnvelope struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams climate state: every entity once on connect, then each
// update as the adapters publish it.
func (s *Server) wsConnect(c *gin.Context) {
	if s.events == nil {
		writeError(c, http.StatusServiceUnavailable, "State streaming disabled")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	listener := s.events.NewListener()
	defer listener.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				log.Debug().Err(err).Msg("Websocket reader closed")
				return
			}
		}
	}()

	for id, climate := range s.climates {
		if err := writeEnvelope(conn, wsEnvelope{Type: "state", EntityID: id, Data: climate.Snapshot()}); err != nil {
			log.Debug().Err(err).Msg("Websocket initial write failed")
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		case ev, ok := <-listener.Receive():
			if !ok {
				log.Debug().Msg("Websocket listener dropped")
				return
			}
			if err := writeEnvelope(conn, wsEnvelope{Type: "state", EntityID: ev.Source, Data: ev.Data}); err != nil {
				log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
