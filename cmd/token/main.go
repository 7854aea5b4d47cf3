// File: cmd/token/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/config"
	"telegram-playlist-bot/internal/infra/api"
)

// Mints a service token for the chat front end:
//
//	go run ./cmd/token -config config.yaml -sub chat-frontend -ttl 720h
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("sub", "chat-frontend", "token subject (front-end name)")
	ttl := flag.Duration("ttl", 0, "token lifetime, 0 for no expiry")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.HTTP.ServiceSecret == "" {
		log.Fatal().Msg("http.service_secret is not set")
	}
	tok, err := api.NewAuthManager(cfg.HTTP.ServiceSecret).Mint(*subject, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("mint token")
	}
	if *ttl > 0 {
		log.Info().Time("expires_at", time.Now().Add(*ttl)).Str("sub", *subject).Msg("token minted")
	}
	fmt.Println(tok)
}
