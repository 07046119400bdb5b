package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/logger"
)

const (
	hubInnerChannelsBufferSize      = 100
	socketWriteWait                 = 10 * time.Second
	socketPongWait                  = 20 * time.Second
	socketPingPeriod                = (socketPongWait * 4) / 5
	socketReadBufferSize            = 5012
	socketWriteBufferSize           = socketReadBufferSize * 256
	socketMaxMessageSize            = socketWriteBufferSize * 4
	clientMessageChannelsBufferSize = 512
	subscribersCountLimit           = 100
)

const (
	CommandEcho     = "echo"
	CommandNewBlock = "command_new_block"
)

// Message is the message that is used to exchange information between
// the server and the client.
type Message struct {
	Command string      `json:"command"`         // Command is the command that refers to the action handler in websocket protocol.
	Error   string      `json:"error,omitempty"` // Error is the error message that is sent to the client.
	Block   block.Block `json:"block"`           // Block is the newly mined block.
}

type socket struct {
	address string
	hub     *hub
	conn    *websocket.Conn
	send    chan []byte
	log     logger.Logger
}

func (s *server) wsWrapper(ctx context.Context, c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	client := &socket{
		address: c.Context().RemoteAddr().String(),
		hub:     s.hub,
		conn:    nil,
		send:    make(chan []byte, clientMessageChannelsBufferSize),
		log:     s.log,
	}

	serveWs := func(conn *websocket.Conn) {
		ctxx, cancel := context.WithCancel(ctx)
		defer cancel()
		client.conn = conn
		client.hub.register <- client
		go client.writePump(ctxx, cancel)
		client.readPump(ctxx, cancel)
	}
	s.log.Info(fmt.Sprintf("websocket server, new connection from address: %s accepted", client.address))

	return websocket.New(serveWs)(c)
}

func (c *socket) readPump(ctx context.Context, cancel context.CancelFunc) {
	c.conn.SetReadLimit(socketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(socketPongWait)); return nil })

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			switch {
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				c.log.Info(fmt.Sprintf("socket closing connection to the client %s due to unexpected error %s", c.address, err))
			default:
				c.log.Info(fmt.Sprintf("socket closing connection to the client %s due to error %s", c.address, err))
			}
			cancel()
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
			c.process(&msg)
		}
	}
}

func (c *socket) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister <- c
		err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "node stopped"))
		if err != nil {
			c.log.Error(fmt.Sprintf("node write closing msg error, %s", err.Error()))
		}
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection to the client %s due to %s", c.address, err))
				cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte(c.address)); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection to the client %s due to %s", c.address, err))
				cancel()
				return
			}
		}
	}
}

func (c *socket) process(msg *Message) {
	switch msg.Command {
	case CommandEcho:
		c.sendCommand(msg)
	default:
		c.log.Info(fmt.Sprintf("socket received unknown command %s", msg.Command))
		c.sendCommand(setCommandError(msg, fmt.Errorf("unknown command %s", msg.Command)))
	}
}

func setCommandError(msg *Message, err error) *Message {
	msg.Error = err.Error()
	return msg
}

func (c *socket) sendCommand(msg *Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.log.Error(fmt.Sprintf("socket failed to marshal message: %s", err.Error()))
		return
	}
	select {
	case c.send <- raw:
	default:
		c.log.Warn(fmt.Sprintf("socket send buffer of the client %s is full, message dropped", c.address))
	}
}

type hub struct {
	clients    map[*socket]struct{}
	broadcast  chan *Message
	register   chan *socket
	unregister chan *socket
	log        logger.Logger
}

func newHub(log logger.Logger) *hub {
	return &hub{
		broadcast:  make(chan *Message, hubInnerChannelsBufferSize),
		register:   make(chan *socket, hubInnerChannelsBufferSize),
		unregister: make(chan *socket, hubInnerChannelsBufferSize),
		clients:    make(map[*socket]struct{}, hubInnerChannelsBufferSize),
		log:        log,
	}
}

func (h *hub) run(ctx context.Context) {
outer:
	for {
		select {
		case client := <-h.register:
			if len(h.clients) >= subscribersCountLimit {
				h.log.Warn(fmt.Sprintf("hub rejected client %s, max number of subscribers reached", client.address))
				if client.conn != nil {
					client.conn.WriteMessage(websocket.CloseMessage, []byte("Max number of subscribers reached."))
				}
				continue
			}
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			delete(h.clients, client)
		case message := <-h.broadcast:
			raw, err := json.Marshal(message)
			if err != nil {
				h.log.Error(fmt.Sprintf("hub failed to marshal message: %s", err.Error()))
				continue outer
			}
			for client := range h.clients {
				select {
				case client.send <- raw:
				default:
					h.log.Warn(fmt.Sprintf("hub dropped message %s for slow client %s", message.Command, client.address))
				}
			}
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
			}
			break outer
		}
	}
}
