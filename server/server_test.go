package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/bookkeeping"
	"github.com/bartossh/Ledgerium/logging"
	"github.com/bartossh/Ledgerium/reactive"
	"github.com/bartossh/Ledgerium/telemetry"
	"github.com/bartossh/Ledgerium/transaction"
	"github.com/bartossh/Ledgerium/wallet"
)

type testNode struct {
	app    *fiber.App
	srv    *server
	pub    *reactive.Observable[block.Block]
	miner  wallet.Wallet
	issuer wallet.Wallet
}

func newTestNode(t *testing.T) *testNode {
	log := logging.New("test", nil, nil, io.Discard)
	pub := reactive.New[block.Block](10)
	c, err := blockchain.New(blockchain.Config{Difficulty: 1, MiningReward: 25}, wallet.Helper{}, log, pub, telemetry.New())
	require.Nil(t, err)

	miner, err := wallet.New()
	require.Nil(t, err)
	issuer, err := wallet.New()
	require.Nil(t, err)

	l, err := bookkeeping.New(bookkeeping.Config{
		MinerAddress:          miner.Address(),
		BlockWriteInterval:    3600,
		BlockTransactionsSize: 1000,
		MiningTimeout:         10,
	}, c, log)
	require.Nil(t, err)

	s := &server{bookkeeping: l, hub: newHub(log), log: log, rx: pub.Subscribe()}
	return &testNode{app: s.router(context.Background()), srv: s, pub: pub, miner: miner, issuer: issuer}
}

func (n *testNode) do(t *testing.T, method, url string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.Nil(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")

	res, err := n.app.Test(req, -1)
	require.Nil(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.Nil(t, err)
	return res.StatusCode, raw
}

func (n *testNode) signed(t *testing.T, recipient string, amount int64) transaction.Transaction {
	trx := transaction.New(n.issuer.Address(), recipient, amount)
	require.Nil(t, trx.Sign(&n.issuer))
	return trx
}

func TestAlive(t *testing.T) {
	n := newTestNode(t)

	status, raw := n.do(t, http.MethodGet, AliveURL, nil)
	require.Equal(t, http.StatusOK, status)

	var res AliveResponse
	require.Nil(t, json.Unmarshal(raw, &res))
	assert.True(t, res.Alive)
	assert.Equal(t, ApiVersion, res.APIVersion)
	assert.Equal(t, Header, res.APIHeader)
}

func TestAddTransactionAndMine(t *testing.T) {
	n := newTestNode(t)
	recipient, err := wallet.New()
	require.Nil(t, err)

	trx := n.signed(t, recipient.Address(), 40)
	status, raw := n.do(t, http.MethodPost, AddTransactionURL, trx)
	require.Equal(t, http.StatusOK, status)

	var added TransactionAddResponse
	require.Nil(t, json.Unmarshal(raw, &added))
	assert.True(t, added.Success)
	assert.Equal(t, trx.ContentHash(), added.ContentHash)

	status, raw = n.do(t, http.MethodGet, PendingTransactionURL, nil)
	require.Equal(t, http.StatusOK, status)
	var pending TransactionsResponse
	require.Nil(t, json.Unmarshal(raw, &pending))
	assert.Len(t, pending.Transactions, 1)

	status, raw = n.do(t, http.MethodPost, MineBlockURL, MineRequest{})
	require.Equal(t, http.StatusOK, status)
	var mined BlockResponse
	require.Nil(t, json.Unmarshal(raw, &mined))
	assert.Len(t, mined.Block.Transactions, 2)
	assert.True(t, mined.Block.MeetsDifficulty(1))
	assert.Equal(t, mined.Block.Hash, mined.Block.HashValue())

	status, raw = n.do(t, http.MethodGet, ChainLatestURL, nil)
	require.Equal(t, http.StatusOK, status)
	var latest BlockResponse
	require.Nil(t, json.Unmarshal(raw, &latest))
	assert.Equal(t, mined.Block.Hash, latest.Block.Hash)

	status, raw = n.do(t, http.MethodGet, ChainBlocksURL, nil)
	require.Equal(t, http.StatusOK, status)
	var blocks BlocksResponse
	require.Nil(t, json.Unmarshal(raw, &blocks))
	assert.Len(t, blocks.Blocks, 2)

	status, raw = n.do(t, http.MethodPost, AddressBalanceURL, AddressRequest{Address: recipient.Address()})
	require.Equal(t, http.StatusOK, status)
	var balance BalanceResponse
	require.Nil(t, json.Unmarshal(raw, &balance))
	assert.Equal(t, int64(40), balance.Balance)

	status, raw = n.do(t, http.MethodPost, AddressBalanceURL, AddressRequest{Address: n.miner.Address()})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, json.Unmarshal(raw, &balance))
	assert.Equal(t, int64(25), balance.Balance)

	status, raw = n.do(t, http.MethodPost, AddressTransactionURL, AddressRequest{Address: n.issuer.Address()})
	require.Equal(t, http.StatusOK, status)
	var history TransactionsResponse
	require.Nil(t, json.Unmarshal(raw, &history))
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, int64(40), history.Transactions[0].Amount)

	status, raw = n.do(t, http.MethodGet, ChainValidURL, nil)
	require.Equal(t, http.StatusOK, status)
	var valid ChainValidResponse
	require.Nil(t, json.Unmarshal(raw, &valid))
	assert.True(t, valid.Valid)
}

func TestAddTransactionRejected(t *testing.T) {
	n := newTestNode(t)
	recipient, err := wallet.New()
	require.Nil(t, err)

	tampered := n.signed(t, recipient.Address(), 40)
	tampered.Amount = 400

	status, raw := n.do(t, http.MethodPost, AddTransactionURL, tampered)
	assert.Equal(t, http.StatusBadRequest, status)
	var res ErrorResponse
	require.Nil(t, json.Unmarshal(raw, &res))
	assert.Contains(t, res.Error, transaction.ErrInvalidSignature.Error())

	status, _ = n.do(t, http.MethodPost, AddTransactionURL, n.signed(t, recipient.Address(), 0))
	assert.Equal(t, http.StatusBadRequest, status)

	req := httptest.NewRequest(http.MethodPost, AddTransactionURL, bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	r, err := n.app.Test(req, -1)
	require.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	status, raw = n.do(t, http.MethodGet, PendingTransactionURL, nil)
	require.Equal(t, http.StatusOK, status)
	var pending TransactionsResponse
	require.Nil(t, json.Unmarshal(raw, &pending))
	assert.Empty(t, pending.Transactions)
}

func TestAddressRequestWithoutAddress(t *testing.T) {
	n := newTestNode(t)

	status, _ := n.do(t, http.MethodPost, AddressBalanceURL, AddressRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, AddressTransactionURL, AddressRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	n := newTestNode(t)

	status, _ := n.do(t, http.MethodGet, WsURL, nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestSubscriberBroadcastsMinedBlock(t *testing.T) {
	n := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.srv.runSubscriber(ctx)

	b := blockchain.GenesisBlock()
	n.pub.Publish(b)

	select {
	case msg := <-n.srv.hub.broadcast:
		assert.Equal(t, CommandNewBlock, msg.Command)
		assert.Equal(t, b.Hash, msg.Block.Hash)
	case <-time.After(time.Second):
		t.Fatal("block not broadcasted")
	}
}

func TestSubscriberStopsWithFullHub(t *testing.T) {
	n := newTestNode(t)
	for i := 0; i < hubInnerChannelsBufferSize; i++ {
		n.srv.hub.broadcast <- &Message{Command: CommandEcho}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.srv.runSubscriber(ctx)
	}()

	n.pub.Publish(blockchain.GenesisBlock())
	time.Sleep(time.Millisecond * 50)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber blocked on full hub after cancel")
	}
}

func TestHubBroadcastsToClients(t *testing.T) {
	log := logging.New("test", nil, nil, io.Discard)
	h := newHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.run(ctx)

	first := &socket{address: "first", hub: h, send: make(chan []byte, 1), log: log}
	second := &socket{address: "second", hub: h, send: make(chan []byte, 1), log: log}
	h.register <- first
	h.register <- second
	time.Sleep(time.Millisecond * 50)

	b := blockchain.GenesisBlock()
	h.broadcast <- &Message{Command: CommandNewBlock, Block: b}

	for _, s := range []*socket{first, second} {
		select {
		case raw := <-s.send:
			var msg Message
			require.Nil(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, CommandNewBlock, msg.Command)
			assert.Equal(t, b.Hash, msg.Block.Hash)
		case <-time.After(time.Second):
			t.Fatalf("client %s got no message", s.address)
		}
	}
}

func TestSocketProcess(t *testing.T) {
	log := logging.New("test", nil, nil, io.Discard)
	s := &socket{address: "client", send: make(chan []byte, 2), log: log}

	s.process(&Message{Command: CommandEcho})
	s.process(&Message{Command: "unknown"})

	var echo, unknown Message
	require.Nil(t, json.Unmarshal(<-s.send, &echo))
	require.Nil(t, json.Unmarshal(<-s.send, &unknown))
	assert.Equal(t, CommandEcho, echo.Command)
	assert.Empty(t, echo.Error)
	assert.Contains(t, unknown.Error, "unknown command")
}

func TestConfigValidate(t *testing.T) {
	assert.Nil(t, Config{Port: 8080}.Validate())
	assert.ErrorIs(t, Config{}.Validate(), ErrWrongPortSpecified)
	assert.ErrorIs(t, Config{Port: 70000}.Validate(), ErrWrongPortSpecified)
}
