package notify

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeTimeout bounds how long a socket is held open waiting for the
// terminal event before the client is told to poll instead.
const subscribeTimeout = 2 * time.Minute

// ServeWS upgrades the connection and streams the single terminal-state
// event for the requested checkout request, then closes.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		checkoutRequestID := c.Query("checkoutRequestId")
		if checkoutRequestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "checkoutRequestId is required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ch := hub.Subscribe(checkoutRequestID)
		defer hub.Unsubscribe(checkoutRequestID, ch)

		select {
		case event := <-ch:
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Failed to write payment event to socket: %v", err)
			}
		case <-time.After(subscribeTimeout):
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "no update yet, use the status endpoint"),
				time.Now().Add(time.Second))
		case <-c.Request.Context().Done():
		}
	}
}
