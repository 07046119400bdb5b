package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Ledgerium/configuration"
	"github.com/bartossh/Ledgerium/logging"
	"github.com/bartossh/Ledgerium/logo"
	"github.com/bartossh/Ledgerium/stdoutwriter"
	"github.com/bartossh/Ledgerium/validator"
	"github.com/bartossh/Ledgerium/wallet"
)

const usage = `The Validator subscribes to the Ledgerium node block stream and independently validates
every mined block: hash, proof of work, link to the previous block and transaction signatures.
Optionally every verdict is posted to the configured webhook.`

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
		Name:  "validator",
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
		fmt.Println("logger error: ", err)
	}

	callbackOnFatal := func(err error) {
		fmt.Println("fatal error: ", err)
		cancel()
	}

	log := logging.New("validator", callbackOnErr, callbackOnFatal, stdoutwriter.Logger{})

	err := validator.Run(ctx, cfg.Validator, log, wallet.NewVerifier())
	time.Sleep(time.Millisecond * 100) // flush asynchronous logs

	return err
}
