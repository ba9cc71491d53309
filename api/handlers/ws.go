package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSFeedHandler - WebSocket endpoint живой ленты: клиент получает события постов
func WSFeedHandler(c *gin.Context) {
	accountID := c.GetString(AccountIDKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	// приветствие пишем до регистрации, чтобы не писать параллельно с рассылкой
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected"}`))

	wsHub.Add(accountID, conn)
	defer wsHub.Remove(accountID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("WebSocket read error:", err)
			}
			break
		}
	}
}
