package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/transaction"
)

// AliveResponse is a response for alive and version check.
type AliveResponse struct {
	Alive      bool   `json:"alive"`
	APIVersion string `json:"api_version"`
	APIHeader  string `json:"api_header"`
}

// ErrorResponse is a response for rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TransactionAddResponse is a response for transaction added to the pending pool.
type TransactionAddResponse struct {
	Success     bool     `json:"success"`
	ContentHash [32]byte `json:"content_hash"`
}

// TransactionsResponse is a response containing transactions.
type TransactionsResponse struct {
	Transactions []transaction.Transaction `json:"transactions"`
}

// MineRequest is a request to mine pending transactions.
// Empty MinerAddress pays the reward to the node miner.
type MineRequest struct {
	MinerAddress string `json:"miner_address"`
}

// BlockResponse is a response containing a block.
type BlockResponse struct {
	Block block.Block `json:"block"`
}

// BlocksResponse is a response containing all the blocks of the chain.
type BlocksResponse struct {
	Blocks []block.Block `json:"blocks"`
}

// ChainValidResponse is a response for the chain validation.
// Index points to the first invalid block and is set only when chain is not valid.
type ChainValidResponse struct {
	Valid bool   `json:"valid"`
	Index int    `json:"index,omitempty"`
	Error string `json:"error,omitempty"`
}

// AddressRequest is a request for address related data.
type AddressRequest struct {
	Address string `json:"address"`
}

// BalanceResponse is a response for the address balance.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

func (s *server) alive(c *fiber.Ctx) error {
	return c.JSON(
		AliveResponse{
			Alive:      true,
			APIVersion: ApiVersion,
			APIHeader:  Header,
		})
}

func (s *server) addTransaction(c *fiber.Ctx) error {
	var trx transaction.Transaction
	if err := c.BodyParser(&trx); err != nil {
		s.log.Error(fmt.Sprintf("add transaction request from %s cannot be parsed: %s", c.IP(), err))
		return fiber.ErrBadRequest
	}

	if err := s.bookkeeping.AddTransaction(trx); err != nil {
		s.log.Info(fmt.Sprintf("transaction from %s rejected: %s", trx.SenderAddress, err))
		return s.reject(c, err)
	}

	return c.JSON(TransactionAddResponse{
		Success:     true,
		ContentHash: trx.ContentHash(),
	})
}

func (s *server) pending(c *fiber.Ctx) error {
	return c.JSON(TransactionsResponse{Transactions: s.bookkeeping.Pending()})
}

func (s *server) mine(c *fiber.Ctx) error {
	var req MineRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("mine request from %s cannot be parsed: %s", c.IP(), err))
		return fiber.ErrBadRequest
	}

	b, err := s.bookkeeping.Mine(c.UserContext(), req.MinerAddress)
	if err != nil {
		s.log.Error(fmt.Sprintf("mining requested by %s failed: %s", c.IP(), err))
		return s.reject(c, err)
	}

	return c.JSON(BlockResponse{Block: b})
}

func (s *server) blocks(c *fiber.Ctx) error {
	return c.JSON(BlocksResponse{Blocks: s.bookkeeping.Blocks()})
}

func (s *server) latest(c *fiber.Ctx) error {
	return c.JSON(BlockResponse{Block: s.bookkeeping.LatestBlock()})
}

func (s *server) valid(c *fiber.Ctx) error {
	err := s.bookkeeping.Validate()
	if err == nil {
		return c.JSON(ChainValidResponse{Valid: true})
	}

	res := ChainValidResponse{Valid: false, Error: err.Error()}
	var invalid *blockchain.InvalidBlockError
	if errors.As(err, &invalid) {
		res.Index = invalid.Index
	}
	return c.JSON(res)
}

func (s *server) balance(c *fiber.Ctx) error {
	var req AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Address == "" {
		return s.reject(c, errors.Join(transaction.ErrValidation, transaction.ErrMissingAddress))
	}

	return c.JSON(BalanceResponse{
		Address: req.Address,
		Balance: s.bookkeeping.BalanceOf(req.Address),
	})
}

func (s *server) transactions(c *fiber.Ctx) error {
	var req AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Address == "" {
		return s.reject(c, errors.Join(transaction.ErrValidation, transaction.ErrMissingAddress))
	}

	return c.JSON(TransactionsResponse{Transactions: s.bookkeeping.TransactionsFor(req.Address)})
}

func (s *server) reject(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, transaction.ErrAuthorization):
		status = fiber.StatusForbidden
	case errors.Is(err, transaction.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, block.ErrMiningInterrupted):
		status = fiber.StatusRequestTimeout
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
