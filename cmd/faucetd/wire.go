//go:build wireinject

package main

import (
	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/server"
	faucetwire "github.com/Digital-Creators-Team/faucet-module/wire"
	"github.com/google/wire"
)

func initializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(faucetwire.FullSet)
	return nil, nil, nil
}
