// WebSocket transport for realtime chat events.
//
// Two stream kinds are exposed:
//   - GET /ws/rooms/{room}  room stream: message and read events
//   - GET /ws/inbox         user stream: unread-count pushes
//
// The socket is read-only for clients; messages are sent over REST so the
// durable log is always written first. Clients that miss events (reconnects,
// dropped frames under backpressure) recover by refetching history.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/reclaimhq/go-reclaim-backend/internal/http/middleware"
	"github.com/reclaimhq/go-reclaim-backend/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is enforced by the CORS layer for the REST API; the demo
	// identity headers carry no ambient browser credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// RoomStream godoc
// @ID          roomStream
// @Summary     Subscribe to a room's live events
// @Description Upgrades to WebSocket and streams message and read events for one room. Participants only.
// @Tags        Realtime
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       room          path    string  true  "Room ID (UUID)"
//
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /ws/rooms/{room} [get]
func (h *Handlers) RoomStream(c *gin.Context) {
	room := c.Param("room")
	if _, err := h.claimSvc.GetByRoom(c.Request.Context(), room, userID(c), userEmail(c)); err != nil {
		failServiceError(c, err)
		return
	}
	h.serveStream(c, room)
}

// InboxStream godoc
// @ID          inboxStream
// @Summary     Subscribe to the caller's unread pushes
// @Description Upgrades to WebSocket and streams unread-count events for every room the caller participates in.
// @Tags        Realtime
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
//
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Router      /ws/inbox [get]
func (h *Handlers) InboxStream(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	h.serveStream(c, realtime.InboxKey(uid))
}

// serveStream upgrades the connection, subscribes to key, and pumps events
// until either side goes away. The subscription is torn down before the
// socket closes so the hub never fans out to a dead connection.
func (h *Handlers) serveStream(c *gin.Context, key string) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		middleware.LoggerFrom(c).Warn().Err(err).Str("stream", key).Msg("websocket upgrade failed")
		return
	}

	sub := h.bus.Subscribe(key)
	defer sub.Close()
	defer conn.Close()

	lg := middleware.LoggerFrom(c)

	// Ack so clients know the subscription is live before any fan-out.
	ack := realtime.Event{Type: realtime.EventSubscribed, RoomID: key, Timestamp: time.Now().UTC()}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(ack); err != nil {
		lg.Warn().Err(err).Str("stream", key).Msg("websocket ack failed")
		return
	}

	// Read pump: clients send nothing meaningful, but reading is required
	// to process pong frames and detect closure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, open := <-sub.C:
			if !open {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(wsWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
