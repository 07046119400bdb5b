package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/httpclient"
	"github.com/bartossh/Ledgerium/logger"
	"github.com/bartossh/Ledgerium/server"
	"github.com/bartossh/Ledgerium/transaction"
)

const (
	wsConnectionTimeout = 5 * time.Second
	requestTimeout      = 5 * time.Second
	pingInterval        = 10 * time.Second
)

const (
	Header    = "Ledgerium-Validator"
	StatusURL = "/status"
)

var (
	ErrWebsocketNotSpecified = errors.New("node websocket address is not specified")
	ErrWrongPortSpecified    = errors.New("port must be between 1 and 65535")
)

// Config contains configuration of the validator.
type Config struct {
	Websocket    string `yaml:"websocket"`     // websocket address of the node
	NodeURL      string `yaml:"node_url"`      // node REST API root used to read the latest block on start
	Difficulty   uint64 `yaml:"difficulty"`    // difficulty the streamed blocks have to meet
	Port         int    `yaml:"port"`          // port on which validator will listen for http requests
	WebhookURL   string `yaml:"webhook_url"`   // url notified about every validated block, optional
	WebhookToken string `yaml:"webhook_token"` // token passed to the webhook to validate the message source
}

// Validate validates the validator configuration.
func (c Config) Validate() error {
	if c.Websocket == "" {
		return ErrWebsocketNotSpecified
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	if c.Difficulty > block.MaxDifficulty {
		return block.ErrDifficultyOutOfRange
	}
	return nil
}

// StatusResponse is a response containing validation statistics.
type StatusResponse struct {
	Accepted      uint64   `json:"accepted"`
	Rejected      uint64   `json:"rejected"`
	LastBlockHash [32]byte `json:"last_block_hash"`
}

type app struct {
	mux       sync.RWMutex
	lastBlock *block.Block
	accepted  uint64
	rejected  uint64
	cfg       Config
	log       logger.Logger
	conn      *websocket.Conn
	ver       transaction.Verifier
}

// Run initializes routing and runs the validator. To stop the validator cancel the context.
// Validator connects to the node via websocket and validates every new block.
// It will block until the context is canceled or the connection is lost.
func Run(ctx context.Context, cfg Config, log logger.Logger, ver transaction.Verifier) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &app{
		cfg: cfg,
		log: log,
		ver: ver,
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, wsConnectionTimeout)
	c, _, err := websocket.DefaultDialer.DialContext(ctxTimeout, cfg.Websocket, nil)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()
	a.conn = c
	a.bootstrap()

	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.pullPump(ctxx, cancel)
	go a.pushPump(ctxx, cancel)

	return a.runServer(ctxx, cancel)
}

func (a *app) bootstrap() {
	if a.cfg.NodeURL == "" {
		return
	}
	var res server.BlockResponse
	if err := httpclient.MakeGet(requestTimeout, a.cfg.NodeURL+server.ChainLatestURL, &res); err != nil {
		a.log.Warn(fmt.Sprintf("validator cannot read the latest block, first streamed block will not be linked: %s", err))
		return
	}
	if res.Block.Hash != res.Block.HashValue() {
		a.log.Warn(fmt.Sprintf("validator read corrupted latest block %x", res.Block.Hash))
		return
	}
	a.lastBlock = &res.Block
	a.log.Info(fmt.Sprintf("validator starts from block %x", res.Block.Hash))
}

func (a *app) pullPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		msgType, raw, err := a.conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				a.log.Error(fmt.Sprintf("validator read msg error, %s", err.Error()))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg server.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			a.log.Error(fmt.Sprintf("validator unmarshal msg error, %s", err.Error()))
			continue
		}
		if msg.Error != "" {
			a.log.Error(fmt.Sprintf("validator msg error, %s", msg.Error))
			continue
		}
		a.processMessage(&msg)
	}
}

func (a *app) pushPump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cancel()
	for {
		select {
		case <-ticker.C:
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.log.Error(fmt.Sprintf("validator write msg error, %s", err.Error()))
				return
			}
		case <-ctx.Done():
			a.log.Info("validator closing connection")
			err := a.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				a.log.Error(fmt.Sprintf("validator write closing msg error, %s", err.Error()))
			}
			a.conn.Close()
			return
		}
	}
}

func (a *app) router() *fiber.App {
	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 5,
		ServerHeader:  Header,
		AppName:       server.ApiVersion,
		Concurrency:   4096,
	})

	router.Get(StatusURL, a.status)

	return router
}

func (a *app) runServer(ctx context.Context, cancel context.CancelFunc) error {
	router := a.router()

	go func() {
		if err := router.Listen(fmt.Sprintf("0.0.0.0:%v", a.cfg.Port)); err != nil {
			a.log.Error(fmt.Sprintf("validator listener stopped: %s", err))
			cancel()
		}
	}()

	<-ctx.Done()

	return router.Shutdown()
}

func (a *app) status(c *fiber.Ctx) error {
	a.mux.RLock()
	defer a.mux.RUnlock()

	res := StatusResponse{Accepted: a.accepted, Rejected: a.rejected}
	if a.lastBlock != nil {
		res.LastBlockHash = a.lastBlock.Hash
	}
	return c.JSON(res)
}

func (a *app) processMessage(m *server.Message) {
	switch m.Command {
	case server.CommandNewBlock:
		a.processBlock(&m.Block)
	case server.CommandEcho:
	default:
		a.log.Error(fmt.Sprintf("validator received unknown command, %s", m.Command))
	}
}

func (a *app) processBlock(b *block.Block) {
	var recovered int
	err := a.validateBlock(b)
	if errors.Is(err, blockchain.ErrInvalidBlockPrevHash) {
		recovered, err = a.catchUp(b)
	}

	a.mux.Lock()
	switch {
	case err == nil:
		a.lastBlock = b
		a.accepted += uint64(recovered) + 1
	case errors.Is(err, ErrBlocksMissed):
		a.lastBlock = b
		a.rejected++
	default:
		a.rejected++
	}
	a.mux.Unlock()

	switch {
	case err == nil && recovered > 0:
		a.log.Info(fmt.Sprintf("validator recovered %d missed blocks and accepted block %x", recovered, b.Hash))
	case err == nil:
		a.log.Info(fmt.Sprintf("validator accepted block %x with %d transactions", b.Hash, len(b.Transactions)))
	case errors.Is(err, ErrBlocksMissed):
		a.log.Warn(fmt.Sprintf("validator relinked to unverified block %x, %s", b.Hash, err.Error()))
	default:
		a.log.Error(fmt.Sprintf("validator received invalid block %x, %s", b.Hash, err.Error()))
	}

	if a.cfg.WebhookURL != "" {
		go a.postWebhookBlock(b, err) // post concurrently
	}
}
