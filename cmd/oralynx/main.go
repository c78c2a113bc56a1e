package main

import (
	"errors"
	"os"

	"github.com/ldsec/oralynx/lib"
	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
)

const (
	// BinaryName is the name of the oralynx app
	BinaryName = "oralynx"

	// Version of the binary
	Version = "1.00"

	// DefaultGroupFile is the name of the default file to lookup for group
	// definition
	DefaultGroupFile = "group.toml"

	// DefaultKeyFile is the name of the default file holding the key pair of a principal
	DefaultKeyFile = "key.toml"

	optionConfig      = "config"
	optionConfigShort = "c"

	optionGroupFile      = "file"
	optionGroupFileShort = "f"

	optionKeyFile      = "key"
	optionKeyFileShort = "k"

	optionNode = "node"

	optionWait = "wait"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = BinaryName
	cliApp.Usage = "Compute means of encrypted observations with a decryption oracle"
	cliApp.Version = Version

	binaryFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}

	keyFlag := cli.StringFlag{
		Name:  optionKeyFile + ", " + optionKeyFileShort,
		Value: DefaultKeyFile,
		Usage: "Key pair of the principal",
	}

	clientFlags := []cli.Flag{
		cli.StringFlag{
			Name:  optionGroupFile + ", " + optionGroupFileShort,
			Value: DefaultGroupFile,
			Usage: "Oralynx group definition file",
		},
		cli.IntFlag{
			Name:  optionNode,
			Value: 0,
			Usage: "Index of the conode hosting the instance in the group file",
		},
		keyFlag,
	}

	serverFlags := []cli.Flag{
		cli.StringFlag{
			Name:  optionConfig + ", " + optionConfigShort,
			Usage: "Configuration file of the server",
		},
	}

	cliApp.Commands = []cli.Command{
		// BEGIN CLIENT: PRINCIPAL ----------
		{
			Name:   "keygen",
			Usage:  "Generate the key pair of a principal",
			Action: keygen,
			Flags:  []cli.Flag{keyFlag},
		},
		{
			Name:   "identity",
			Usage:  "Print the identity of a principal",
			Action: printIdentity,
			Flags:  []cli.Flag{keyFlag},
		},
		// CLIENT END: PRINCIPAL ------------

		// BEGIN CLIENT: OWNER ----------
		{
			Name:      "setup",
			Usage:     "Create the instance of a conode, owned by the key holder",
			ArgsUsage: "instance.toml",
			Action:    setupInstance,
			Flags:     clientFlags,
		},
		{
			Name:   "open",
			Usage:  "Open a new batch",
			Action: openBatch,
			Flags:  clientFlags,
		},
		{
			Name:      "close",
			Usage:     "Close a batch",
			ArgsUsage: "batch",
			Action:    closeBatch,
			Flags:     clientFlags,
		},
		{
			Name:  "provider",
			Usage: "Manage the data providers",
			Subcommands: []cli.Command{
				{
					Name:      "add",
					Usage:     "Register a provider",
					ArgsUsage: "identity",
					Action:    addProvider,
					Flags:     clientFlags,
				},
				{
					Name:      "remove",
					Usage:     "Unregister a provider",
					ArgsUsage: "identity",
					Action:    removeProvider,
					Flags:     clientFlags,
				},
			},
		},
		{
			Name:   "pause",
			Usage:  "Suspend submissions and requests",
			Action: pause,
			Flags:  clientFlags,
		},
		{
			Name:   "unpause",
			Usage:  "Resume submissions and requests",
			Action: unpause,
			Flags:  clientFlags,
		},
		{
			Name:      "cooldown",
			Usage:     "Set the cooldown between two actions of a provider",
			ArgsUsage: "duration",
			Action:    setCooldown,
			Flags:     clientFlags,
		},
		{
			Name:      "transfer",
			Usage:     "Transfer the ownership of the instance",
			ArgsUsage: "identity",
			Action:    transferOwnership,
			Flags:     clientFlags,
		},
		{
			Name:      "journal",
			Usage:     "Print the audit journal of the instance, or the journaled result of a request",
			ArgsUsage: "[request]",
			Action:    printJournal,
			Flags:     clientFlags,
		},
		// CLIENT END: OWNER ------------

		// BEGIN CLIENT: DATA PROVIDER ----------
		{
			Name:      "submit",
			Usage:     "Encrypt and submit observations to a batch",
			ArgsUsage: "batch value...",
			Action:    submit,
			Flags:     clientFlags,
		},
		{
			Name:      "request",
			Usage:     "Request the mean of a batch",
			ArgsUsage: "batch",
			Action:    requestMean,
			Flags: append(clientFlags, cli.DurationFlag{
				Name:  optionWait,
				Usage: "Wait for the result up to the given duration",
			}),
		},
		// CLIENT END: DATA PROVIDER ------------

		// BEGIN CLIENT: ANYONE ----------
		{
			Name:   "info",
			Usage:  "Print the public state of the instance",
			Action: info,
			Flags:  clientFlags,
		},
		{
			Name:      "batch",
			Usage:     "Print the public state of a batch",
			ArgsUsage: "batch",
			Action:    batchInfo,
			Flags:     clientFlags,
		},
		{
			Name:      "result",
			Usage:     "Print the state of a request",
			ArgsUsage: "request",
			Action:    result,
			Flags:     clientFlags,
		},
		{
			Name:      "relay",
			Usage:     "Relay the oracle answer to a request",
			ArgsUsage: "request",
			Action:    relay,
			Flags:     clientFlags,
		},
		// CLIENT END: ANYONE ------------

		// BEGIN SERVER --------
		{
			Name:  "server",
			Usage: "Start oralynx server",
			Action: func(c *cli.Context) error {
				if err := runServer(c); err != nil {
					return errors.New("error during runServer(): " + err.Error())
				}
				return nil
			},
			Flags: serverFlags,
			Subcommands: []cli.Command{
				{
					Name:    "setup",
					Aliases: []string{"s"},
					Usage:   "Setup server configuration (interactive)",
					Action: func(c *cli.Context) error {
						if c.String(optionConfig) != "" {
							return errors.New("[-] Configuration file option cannot be used for the 'setup' command")
						}
						if c.GlobalIsSet("debug") {
							return errors.New("[-] Debug option cannot be used for the 'setup' command")
						}
						app.InteractiveConfig(liboralynx.SuiTe, BinaryName)
						return nil
					},
				},
			},
		},
		// SERVER END ----------
	}

	cliApp.Flags = binaryFlags
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt("debug"))
		return nil
	}
	err := cliApp.Run(os.Args)
	log.ErrFatal(err)
}
