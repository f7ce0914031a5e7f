package main

import (
	"log"
	"net/http"

	"vidflow/internal/api"
	"vidflow/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := config.NewLogger(cfg.Tunables.LogLevel)
	h := api.NewServer(cfg, logger)
	logger.Info("vidflow api listening", "addr", cfg.APIAddr, "gateway_mode", cfg.GatewayMode)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
