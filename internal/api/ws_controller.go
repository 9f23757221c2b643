package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем подключения с любого origin (для разработки)
		// В продакшене лучше проверять конкретные домены
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeDashboardWS обрабатывает WebSocket подключения дашбордов
func ServeDashboardWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ Ошибка обновления WebSocket соединения: %v", err)
		return
	}

	DashboardHub.AddClient(conn)
	log.Printf("📊 Дашборд подключен. Всего подключений: %d", DashboardHub.GetClientsCount())

	defer func() {
		DashboardHub.RemoveClient(conn)
		log.Printf("📊 Дашборд отключен. Осталось подключений: %d", DashboardHub.GetClientsCount())
	}()

	// Читаем сообщения от клиента (ping/pong для поддержания соединения)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket ошибка: %v", err)
			}
			break
		}
	}
}
