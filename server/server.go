package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/logger"
	"github.com/bartossh/Ledgerium/transaction"
)

const (
	ApiVersion = "1.0.0"
	Header     = "Ledgerium-Node"
)

const (
	transactionGroupURL = "/transaction"
	blockGroupURL       = "/block"
	chainGroupURL       = "/chain"
	addressGroupURL     = "/address"
	addURL              = "/add"
	pendingURL          = "/pending"
	mineURL             = "/mine"
	blocksURL           = "/blocks"
	latestURL           = "/latest"
	validURL            = "/valid"
	balanceURL          = "/balance"
	transactionsURL     = "/transactions"
)

const (
	AliveURL              = "/alive"                          // URL to check if server is alive and version.
	AddTransactionURL     = transactionGroupURL + addURL      // URL to add signed transaction to the pending pool.
	PendingTransactionURL = transactionGroupURL + pendingURL  // URL to read transactions awaiting to be mined.
	MineBlockURL          = blockGroupURL + mineURL           // URL to mine pending transactions on demand.
	ChainBlocksURL        = chainGroupURL + blocksURL         // URL to read all the blocks.
	ChainLatestURL        = chainGroupURL + latestURL         // URL to read the latest block.
	ChainValidURL         = chainGroupURL + validURL          // URL to validate the whole chain.
	AddressBalanceURL     = addressGroupURL + balanceURL      // URL to read the address balance.
	AddressTransactionURL = addressGroupURL + transactionsURL // URL to read the address transactions history.
	WsURL                 = "/ws"                             // URL to connect to websocket.
)

var ErrWrongPortSpecified = errors.New("port must be between 1 and 65535")

// Bookkeeper abstracts methods of the bookkeeping of a blockchain.
type Bookkeeper interface {
	Run(ctx context.Context)
	AddTransaction(trx transaction.Transaction) error
	Mine(ctx context.Context, minerAddress string) (block.Block, error)
	Pending() []transaction.Transaction
	Blocks() []block.Block
	LatestBlock() block.Block
	BalanceOf(address string) int64
	TransactionsFor(address string) []transaction.Transaction
	Validate() error
}

// ReactiveSubscriberProvider provides reactive subscription to the blockchain.
// It allows to listen for the new blocks mined by the Ledger.
type ReactiveSubscriberProvider interface {
	Cancel()
	Channel() <-chan block.Block
}

// Config contains configuration of the server.
type Config struct {
	Port int `yaml:"port"` // Port to listen on.
}

// Validate validates the server configuration.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	return nil
}

type server struct {
	bookkeeping Bookkeeper
	hub         *hub
	log         logger.Logger
	rx          ReactiveSubscriberProvider
}

// Run initializes routing and runs the server. To stop the server cancel the context.
// It blocks until the context is canceled.
func Run(ctx context.Context, c Config, bookkeeping Bookkeeper, log logger.Logger, rx ReactiveSubscriberProvider) error {
	var err error
	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.Validate(); err != nil {
		return err
	}

	s := &server{
		bookkeeping: bookkeeping,
		hub:         newHub(log),
		log:         log,
		rx:          rx,
	}

	router := s.router(ctxx)

	go func() {
		bookkeeping.Run(ctxx)
		if err := router.Listen(fmt.Sprintf("0.0.0.0:%v", c.Port)); err != nil {
			log.Error(fmt.Sprintf("server listener stopped: %s", err))
			cancel()
		}
	}()
	go s.hub.run(ctxx)
	go s.runSubscriber(ctxx)

	<-ctxx.Done()

	if errx := router.Shutdown(); errx != nil {
		err = errors.Join(err, errx)
	}

	return err
}

func (s *server) router(ctx context.Context) *fiber.App {
	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 60,
		ServerHeader:  Header,
		AppName:       ApiVersion,
		Concurrency:   4096,
	})
	router.Use(recover.New())

	router.Get(AliveURL, s.alive)

	transaction := router.Group(transactionGroupURL)
	transaction.Post(addURL, s.addTransaction)
	transaction.Get(pendingURL, s.pending)

	block := router.Group(blockGroupURL)
	block.Post(mineURL, s.mine)

	chain := router.Group(chainGroupURL)
	chain.Get(blocksURL, s.blocks)
	chain.Get(latestURL, s.latest)
	chain.Get(validURL, s.valid)

	address := router.Group(addressGroupURL)
	address.Post(balanceURL, s.balance)
	address.Post(transactionsURL, s.transactions)

	router.Get(WsURL, func(c *fiber.Ctx) error { return s.wsWrapper(ctx, c) })

	return router
}

func (s *server) runSubscriber(ctx context.Context) {
	defer s.rx.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-s.rx.Channel():
			if !ok {
				return
			}
			select {
			case s.hub.broadcast <- &Message{Command: CommandNewBlock, Block: b}:
			case <-ctx.Done():
				return
			}
		}
	}
}
