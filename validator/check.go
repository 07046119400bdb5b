package validator

import (
	"errors"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/httpclient"
	"github.com/bartossh/Ledgerium/server"
)

var (
	ErrBlocksMissed   = errors.New("blocks between the last accepted block and the received block were missed")
	ErrCatchUpNoNode  = errors.New("node url is not specified, cannot read missed blocks")
	ErrCatchUpNoMatch = errors.New("node chain does not contain the last accepted block followed by the received block")
)

// validateBlock validates the block against the last accepted block.
// Without the last block only the block itself is validated.
func (a *app) validateBlock(b *block.Block) error {
	a.mux.RLock()
	previous := block.Block{Hash: b.PrevHash}
	if a.lastBlock != nil {
		previous = *a.lastBlock
	}
	a.mux.RUnlock()

	return blockchain.ValidateBlock(b, &previous, a.cfg.Difficulty, a.ver)
}

// catchUp reads the blocks missed between the last accepted block and b from the node,
// validates them in chain order and returns how many were recovered.
// Error joined with ErrBlocksMissed means b is valid on its own but cannot be linked.
func (a *app) catchUp(b *block.Block) (int, error) {
	if err := blockchain.ValidateBlock(b, &block.Block{Hash: b.PrevHash}, a.cfg.Difficulty, a.ver); err != nil {
		return 0, err
	}
	if a.cfg.NodeURL == "" {
		return 0, errors.Join(ErrBlocksMissed, ErrCatchUpNoNode)
	}

	var res server.BlocksResponse
	if err := httpclient.MakeGet(requestTimeout, a.cfg.NodeURL+server.ChainBlocksURL, &res); err != nil {
		return 0, errors.Join(ErrBlocksMissed, err)
	}

	a.mux.RLock()
	last := *a.lastBlock
	a.mux.RUnlock()

	start, end := -1, -1
	for i := range res.Blocks {
		switch res.Blocks[i].Hash {
		case last.Hash:
			start = i
		case b.PrevHash:
			end = i
		}
	}
	if start < 0 || end <= start {
		return 0, errors.Join(ErrBlocksMissed, ErrCatchUpNoMatch)
	}

	previous := last
	for i := start + 1; i <= end; i++ {
		if err := blockchain.ValidateBlock(&res.Blocks[i], &previous, a.cfg.Difficulty, a.ver); err != nil {
			return 0, err
		}
		previous = res.Blocks[i]
	}

	return end - start, nil
}
