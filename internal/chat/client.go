package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/umar/forum-livechat/internal/auth"
	"github.com/umar/forum-livechat/internal/models"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection, usually one browser tab.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	identity models.Identity
	verified bool

	// rooms maps each subscribed room to the user id the connection joined as.
	// Only the hub goroutine touches it.
	rooms map[string]string

	send    chan []byte
	limiter *rate.Limiter
}

// ServeWS upgrades the request and registers the connection with the hub.
// A ?token= query parameter binds the connection to the token's user.
// Without one, identity comes from the userId, name and avatar parameters
// unless requireToken is set.
func ServeWS(hub *Hub, jwtSecret string, requireToken bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, verified, err := handshakeIdentity(r, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if requireToken && !verified {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Error("websocket upgrade failed", "error", err)
			return
		}

		client := hub.newClient(conn, identity, verified)
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}

func handshakeIdentity(r *http.Request, jwtSecret string) (models.Identity, bool, error) {
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		claims, err := auth.ValidateToken(token, jwtSecret)
		if err != nil {
			return models.Identity{}, false, err
		}
		return claims.Identity(), true, nil
	}
	return models.Identity{
		ID:     q.Get("userId"),
		Name:   q.Get("name"),
		Avatar: q.Get("avatar"),
	}, false, nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("ws read error", "error", err, "remote", c.conn.RemoteAddr().String())
			}
			break
		}

		in := &inbound{client: c, throttled: !c.limiter.Allow()}
		if err := json.Unmarshal(message, &in.msg); err != nil {
			in.decodeErr = err
		}
		if !c.hub.deliver(in) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
