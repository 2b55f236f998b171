package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"creditshop/config"
	"creditshop/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type watchMessage struct {
	Type      string `json:"type"`
	PaymentID string `json:"payment_id"`
}

// UpgradePaymentWS upgrades the connection for the payment channel. The
// client authenticates with a token query param, then sends
// {"type":"watch_payment","payment_id":"..."} for each payment it wants
// pushes for.
func UpgradePaymentWS(cfg *config.JWTConfig, hub *PaymentHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		token := c.Query("token")
		if token == "" {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"token required"}`))
			return
		}
		claims, err := auth.ParseToken(cfg, token)
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
			return
		}
		sub := &Subscriber{
			UserID: claims.UserID,
			Send:   make(chan []byte, 16),
		}
		hub.Register(sub)
		defer sub.Close()
		go writePump(sub, conn)
		readPump(hub, sub, conn)
	}
}

// writePump copies pushes from sub.Send to the connection.
func writePump(s *Subscriber, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-s.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes watch requests until the connection drops.
func readPump(hub *PaymentHub, s *Subscriber, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg watchMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Type == "watch_payment" && msg.PaymentID != "" {
			hub.Watch(s, msg.PaymentID)
		}
	}
}
