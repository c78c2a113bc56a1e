package main

import (
	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/app"

	// Empty import to have the init-function called which registers the service
	_ "github.com/ldsec/oralynx/services"
)

func runServer(ctx *cli.Context) error {
	// first check the options
	config := ctx.String(optionConfig)
	app.RunServer(config)
	return nil
}
