package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const (
	configFlag       = "config"
	rootFlag         = "root"
	passwordFlag     = "password"
	transactionsFlag = "transactions"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "neo-did"
	app.Usage = "manage decentralized identifiers of the wallet"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  configFlag + ", c",
			Usage: "path to the YAML configuration file",
		},
		cli.StringFlag{
			Name:  rootFlag + ", r",
			Usage: "wallet root directory (ignored if config is set)",
			Value: ".",
		},
		cli.StringFlag{
			Name:  passwordFlag + ", p",
			Usage: "wallet password, prompted if not set",
		},
		cli.StringFlag{
			Name:  transactionsFlag + ", t",
			Usage: "JSON file with the wallet transactions replayed on startup",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "create",
			Usage:  "derive new identifier",
			Action: createDID,
		},
		{
			Name:   "list",
			Usage:  "list identifiers",
			Action: listDIDs,
		},
		{
			Name:      "get",
			Usage:     "print current attribute value",
			ArgsUsage: "<identifier> <path>",
			Action:    getValue,
		},
		{
			Name:      "history",
			Usage:     "print all attribute versions",
			ArgsUsage: "<identifier> <path>",
			Action:    getHistory,
		},
		{
			Name:      "paths",
			Usage:     "list attribute paths",
			ArgsUsage: "<identifier>",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "start", Usage: "position of the first path"},
				cli.UintFlag{Name: "count", Usage: "max number of paths", Value: 100},
			},
			Action: listPaths,
		},
		{
			Name:      "set",
			Usage:     "set unconfirmed attribute value",
			ArgsUsage: "<identifier> <path> <JSON value>",
			Action:    setValue,
		},
		{
			Name:      "unset",
			Usage:     "remove attribute version",
			ArgsUsage: "<identifier> <path>",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "height", Usage: "version height, unconfirmed one by default"},
			},
			Action: unsetValue,
		},
		{
			Name:      "sign",
			Usage:     "sign message with the identifier key",
			ArgsUsage: "<identifier> <message>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "program", Usage: "print witness scripts instead of the signature"},
			},
			Action: signMessage,
		},
		{
			Name:      "verify",
			Usage:     "verify message signature",
			ArgsUsage: "<identifier> <message> <hex signature>",
			Action:    verifySignature,
		},
		{
			Name:      "event",
			Usage:     "apply registration transaction event",
			ArgsUsage: "<identifier> <path>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "status", Usage: "transaction status: Added, Updated or Deleted", Value: "Added"},
				cli.UintFlag{Name: "height", Usage: "block height of the transaction"},
				cli.StringFlag{Name: "tx", Usage: "hash of the wallet transaction for Updated and Deleted events"},
				cli.StringFlag{Name: "data-hash", Usage: "attribute data hash"},
				cli.StringFlag{Name: "proof", Usage: "attribute proof"},
				cli.StringFlag{Name: "sign", Usage: "attribute signature"},
			},
			Action: applyEvent,
		},
		{
			Name:      "destroy",
			Usage:     "remove identifier with all its attributes",
			ArgsUsage: "<identifier>",
			Action:    destroyDID,
		},
		{
			Name:      "dump",
			Usage:     "export attribute cache into CSV file",
			ArgsUsage: "<file>",
			Action:    dumpCache,
		},
		{
			Name:      "restore",
			Usage:     "import attribute cache from CSV file",
			ArgsUsage: "<file>",
			Action:    restoreCache,
		},
	}

	return app
}
