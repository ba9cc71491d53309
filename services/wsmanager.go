package services

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// предел на запись одного сообщения одному клиенту
const WS_WRITE_WAIT = 10 * time.Second

// wsClient - соединение со своим замком на запись:
// gorilla/websocket не допускает параллельную запись в одно соединение
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(message []byte, wait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// WSConnManager - реестр websocket соединений по id аккаунта
type WSConnManager struct {
	mu        sync.RWMutex
	users     map[string][]*wsClient
	writeWait time.Duration
}

func NewWSConnManager() *WSConnManager {
	return &WSConnManager{
		users:     make(map[string][]*wsClient),
		writeWait: WS_WRITE_WAIT,
	}
}

// WithWriteWait меняет предел записи, нулевое значение игнорируется
func (m *WSConnManager) WithWriteWait(wait time.Duration) *WSConnManager {
	if wait > 0 {
		m.writeWait = wait
	}
	return m
}

func (m *WSConnManager) Add(accountID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[accountID] = append(m.users[accountID], &wsClient{conn: conn})
}

func (m *WSConnManager) Remove(accountID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clients := m.users[accountID]
	for i, c := range clients {
		if c.conn == conn {
			m.users[accountID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(m.users[accountID]) == 0 {
		delete(m.users, accountID)
	}
}

// Count - число открытых соединений
func (m *WSConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, clients := range m.users {
		total += len(clients)
	}
	return total
}

func (m *WSConnManager) Send(accountID string, message []byte) {
	m.mu.RLock()
	clients := append([]*wsClient(nil), m.users[accountID]...)
	m.mu.RUnlock()
	m.write(clients, message)
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (m *WSConnManager) Broadcast(message []byte) {
	m.mu.RLock()
	var clients []*wsClient
	for _, userClients := range m.users {
		clients = append(clients, userClients...)
	}
	m.mu.RUnlock()
	m.write(clients, message)
}

// write пишет всем клиентам параллельно; медленный клиент держит только себя
// и не дольше writeWait
func (m *WSConnManager) write(clients []*wsClient, message []byte) {
	var wg sync.WaitGroup
	for _, client := range clients {
		wg.Add(1)
		go func(client *wsClient) {
			defer wg.Done()
			if err := client.write(message, m.writeWait); err != nil {
				log.Printf("DEBUG: websocket write failed, closing connection: %v", err)
				// после ошибки записи соединение непригодно; цикл чтения в обработчике завершится и вызовет Remove
				client.conn.Close()
			}
		}(client)
	}
	wg.Wait()
}

var GlobalWSConnManager = NewWSConnManager()
