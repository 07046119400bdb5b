package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/blockchain"
	"github.com/bartossh/Ledgerium/bookkeeping"
	"github.com/bartossh/Ledgerium/configuration"
	"github.com/bartossh/Ledgerium/logging"
	"github.com/bartossh/Ledgerium/logo"
	"github.com/bartossh/Ledgerium/reactive"
	"github.com/bartossh/Ledgerium/server"
	"github.com/bartossh/Ledgerium/stdoutwriter"
	"github.com/bartossh/Ledgerium/telemetry"
	"github.com/bartossh/Ledgerium/wallet"
)

const usage = `runs the Ledgerium node that keeps the chain, mines blocks and serves the REST API`

const blockSubscriberBuffer = 100

func main() {
	logo.Display()

	var file string
	configurator := func() (configuration.Configuration, error) {
		path, err := configuration.ResolvePath(file)
		if err != nil {
			return configuration.Configuration{}, err
		}
		return configuration.Read(path)
	}

	app := &cli.App{
		Name:  "node",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Action: func(_ *cli.Context) error {
			cfg, err := configurator()
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func run(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		cancel()
	}()

	callbackOnErr := func(err error) {
		fmt.Println("Error with logger: ", err)
	}

	callbackOnFatal := func(err error) {
		fmt.Println("Fatal error, node stops: ", err)
		cancel()
	}

	log := logging.New("node", callbackOnErr, callbackOnFatal, stdoutwriter.Logger{})

	tele := telemetry.New()
	go func() {
		if err := telemetry.Run(ctx, cancel, cfg.Telemetry, tele); err != nil {
			log.Error(fmt.Sprintf("telemetry server stopped: %s", err))
		}
	}()

	pub := reactive.New[block.Block](blockSubscriberBuffer)

	chain, err := blockchain.New(cfg.Chain, wallet.NewVerifier(), log, pub, tele)
	if err != nil {
		return err
	}

	ledger, err := bookkeeping.New(cfg.Bookkeeper, chain, log)
	if err != nil {
		return err
	}

	log.Info(fmt.Sprintf("node starts on port %d with difficulty %d and mining reward %d",
		cfg.Server.Port, cfg.Chain.Difficulty, cfg.Chain.MiningReward))

	err = server.Run(ctx, cfg.Server, ledger, log, pub.Subscribe())
	cancel()

	select {
	case <-ledger.Done():
	case <-time.After(time.Duration(cfg.Bookkeeper.MiningTimeout+1) * time.Second):
	}
	time.Sleep(time.Millisecond * 100) // flush asynchronous logs

	return err
}
