package signal

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ch *Channel) writePump(c *wsSignalConn) {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(ch.opts.WriteTimeout)); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
			ch.dropped(c)
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
			ch.dropped(c)
			return
		}
	}
	log.Debug().Str("module", "signal").Msg("writePump channel closed")
}

func (ch *Channel) readPump(c *wsSignalConn) {
	defer ch.dropped(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Str("module", "signal").Msg("readPump closed by peer")
			} else {
				log.Debug().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		ch.deliver(data)
	}
}
