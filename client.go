package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 80
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string // transport connection id
	roomID     string
	room       *Room
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client bound to a room id
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr, roomID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		id:         GenerateID(8),
		roomID:     roomID,
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
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
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
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
			// 0xFF prefix marks frames queued by SendBinary
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes one inbound frame. Malformed frames and unknown
// types are dropped without closing the connection.
func (c *Client) handleMessage(raw []byte) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return
	}

	switch probe.Type {
	case MsgJoin:
		c.handleJoin(raw)
	case MsgInput:
		c.handleInput(raw)
	case MsgStartGame:
		if c.room != nil {
			c.room.HandleStart(c.id)
		}
	case MsgToggleReady:
		if c.room != nil {
			c.room.HandleToggleReady(c.id)
		}
	case MsgReturnToLobby:
		if c.room != nil {
			c.room.HandleReturnToLobby(c.id)
		}
	case MsgListRooms:
		c.SendJSON(RoomsMsg{Type: MsgRooms, Rooms: c.hub.rooms.List()})
	case MsgRegister:
		c.handleRegister(raw)
	case MsgLogin:
		c.handleLogin(raw)
	case MsgAuth:
		c.handleAuth(raw)
	case MsgProfile:
		c.handleProfile()
	}
}

func (c *Client) handleJoin(raw []byte) {
	var msg JoinMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	room := c.hub.rooms.GetOrCreate(c.roomID)
	if room == nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: "too many active rooms"})
		return
	}

	player, reconnected, err := room.Join(c.id, c, msg.Name, msg.IsHost, msg.Codec == "msgpack", c.authPlayerID)
	if err != nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: err.Error()})
		return
	}
	c.room = room

	if reconnected {
		// The logical id predates this connection; tell the client
		// which player it is driving again.
		c.SendJSON(PlayerIDMsg{Type: MsgPlayerID, ID: player.ID})
	}
}

func (c *Client) handleInput(raw []byte) {
	if c.room == nil {
		return
	}
	var in InputMsg
	if err := json.Unmarshal(raw, &in); err != nil {
		return
	}
	c.room.HandleInput(c.id, in)
}

func (c *Client) handleRegister(raw []byte) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: err.Error()})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(AuthOKMsg{Type: MsgAuthOK, Token: token, Username: msg.Username, PlayerID: id})
}

func (c *Client) handleLogin(raw []byte) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: err.Error()})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(AuthOKMsg{Type: MsgAuthOK, Token: token, Username: msg.Username, PlayerID: id})
}

func (c *Client) handleAuth(raw []byte) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: "invalid token"})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.SendJSON(AuthOKMsg{Type: MsgAuthOK, Token: msg.Token, Username: username, PlayerID: id})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: "not authenticated"})
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: "profile not found"})
		return
	}
	c.SendJSON(ProfileDataMsg{
		Type:     MsgProfileData,
		Username: c.authUsername,
		Kills:    stats.Kills,
		Deaths:   stats.Deaths,
		Wins:     stats.Wins,
		Rounds:   stats.Rounds,
	})
}
