package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	appcli "github.com/jinford/docchat/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := appcli.NewCommand(appcli.NewRunner())

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
