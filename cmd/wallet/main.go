package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Ledgerium/aeswrapper"
	"github.com/bartossh/Ledgerium/client"
	"github.com/bartossh/Ledgerium/configuration"
	"github.com/bartossh/Ledgerium/fileoperations"
	"github.com/bartossh/Ledgerium/logo"
	"github.com/bartossh/Ledgerium/transaction"
	"github.com/bartossh/Ledgerium/wallet"
)

const usage = `Wallet CLI tool allows to create a new Wallet and act on the Ledgerium node with the local Wallet.
The Wallet file is sealed with AES-GCM key derived from the configured passphrase.`

func main() {
	logo.Display()

	var config, address, to string
	var amount int64

	configurator := func() (configuration.Configuration, error) {
		path, err := configuration.ResolvePath(config)
		if err != nil {
			return configuration.Configuration{}, err
		}
		return configuration.Read(path)
	}

	rest := func(readWallet bool) (*client.Rest, error) {
		cfg, err := configurator()
		if err != nil {
			return nil, err
		}
		r := client.NewRest(
			cfg.Client.NodeURL, cfg.Client.Timeout(),
			fileoperations.New(cfg.FileOperator, aeswrapper.New()), wallet.New,
		)
		if readWallet {
			if err := r.ReadWallet(); err != nil {
				return nil, err
			}
		}
		return r, nil
	}

	addressFlag := &cli.StringFlag{
		Name:        "address",
		Aliases:     []string{"a"},
		Usage:       "Public `ADDRESS`, the wallet address when not set.",
		Destination: &address,
	}

	app := &cli.App{
		Name:  "wallet",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &config,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "new",
				Aliases: []string{"n"},
				Usage:   "Creates new wallet and saves it to sealed file.",
				Action: func(_ *cli.Context) error {
					r, err := rest(false)
					if err != nil {
						return err
					}
					if err := r.NewWallet(); err != nil {
						return err
					}
					addr, err := r.Address()
					if err != nil {
						return err
					}
					pterm.Success.Printf("Wallet created, address: %s\n", addr)
					return nil
				},
			},
			{
				Name:    "address",
				Aliases: []string{"addr"},
				Usage:   "Prints the wallet address.",
				Action: func(_ *cli.Context) error {
					r, err := rest(true)
					if err != nil {
						return err
					}
					addr, err := r.Address()
					if err != nil {
						return err
					}
					pterm.Info.Println(addr)
					return nil
				},
			},
			{
				Name:    "send",
				Aliases: []string{"s"},
				Usage:   "Signs and sends the transaction to the node pending pool.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "to",
						Usage:       "Recipient `ADDRESS`.",
						Required:    true,
						Destination: &to,
					},
					&cli.Int64Flag{
						Name:        "amount",
						Usage:       "Transferred `AMOUNT`.",
						Required:    true,
						Destination: &amount,
					},
				},
				Action: func(_ *cli.Context) error {
					r, err := rest(true)
					if err != nil {
						return err
					}
					if err := r.ValidateApiVersion(); err != nil {
						return err
					}
					hash, err := r.SendTransaction(to, amount)
					if err != nil {
						return err
					}
					pterm.Success.Printf("Transaction %x of amount %d to %s is pending.\n", hash, amount, to)
					return nil
				},
			},
			{
				Name:    "balance",
				Aliases: []string{"b"},
				Usage:   "Prints the address balance calculated from the chain.",
				Flags:   []cli.Flag{addressFlag},
				Action: func(_ *cli.Context) error {
					r, err := rest(address == "")
					if err != nil {
						return err
					}
					balance, err := r.Balance(address)
					if err != nil {
						return err
					}
					pterm.Info.Printf("Balance: %d\n", balance)
					return nil
				},
			},
			{
				Name:    "history",
				Aliases: []string{"h"},
				Usage:   "Prints the address transactions in chain order.",
				Flags:   []cli.Flag{addressFlag},
				Action: func(_ *cli.Context) error {
					r, err := rest(address == "")
					if err != nil {
						return err
					}
					trxs, err := r.Transactions(address)
					if err != nil {
						return err
					}
					printTransactions(trxs)
					return nil
				},
			},
			{
				Name:    "pending",
				Aliases: []string{"p"},
				Usage:   "Prints transactions awaiting to be mined.",
				Action: func(_ *cli.Context) error {
					r, err := rest(false)
					if err != nil {
						return err
					}
					trxs, err := r.Pending()
					if err != nil {
						return err
					}
					printTransactions(trxs)
					return nil
				},
			},
			{
				Name:    "mine",
				Aliases: []string{"m"},
				Usage:   "Requests the node to mine pending transactions, the reward is paid to the wallet.",
				Action: func(_ *cli.Context) error {
					r, err := rest(true)
					if err != nil {
						return err
					}
					b, err := r.Mine("")
					if err != nil {
						return err
					}
					pterm.Success.Printf("Block %x mined with nonce %d and %d transactions.\n", b.Hash, b.Nonce, len(b.Transactions))
					return nil
				},
			},
			{
				Name:    "valid",
				Aliases: []string{"v"},
				Usage:   "Requests the node to validate the whole chain.",
				Action: func(_ *cli.Context) error {
					r, err := rest(false)
					if err != nil {
						return err
					}
					res, err := r.ChainValid()
					if err != nil {
						return err
					}
					if res.Valid {
						pterm.Success.Println("Chain is valid.")
						return nil
					}
					pterm.Warning.Printf("Chain is invalid at block %d: %s\n", res.Index, res.Error)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func printTransactions(trxs []transaction.Transaction) {
	data := pterm.TableData{{"Created At", "Sender", "Recipient", "Amount"}}
	for _, trx := range trxs {
		sender := trx.SenderAddress
		if trx.IsReward() {
			sender = "reward"
		}
		data = append(data, []string{
			trx.CreatedAt.Format(time.RFC3339), sender, trx.RecipientAddress, fmt.Sprintf("%d", trx.Amount),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
