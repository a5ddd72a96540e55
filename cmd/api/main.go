package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"refundflow/auth"
	"refundflow/db"
	"refundflow/engine"
	"refundflow/gateway"
	"refundflow/ledger"
	"refundflow/notify"
	"refundflow/sink"
)

func main() {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	gatewayURL := os.Getenv("MODEL_GATEWAY_URL")
	if gatewayURL == "" {
		log.Fatal("MODEL_GATEWAY_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	gw := gateway.NewClient(gatewayURL, os.Getenv("MODEL_GATEWAY_API_KEY"))
	eng := engine.New(gw, gw, gw, gw)

	notifier := &notify.Telegram{
		Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}
	runner := sink.NewRunner(notifier, ledger.NewRepository(pool))

	server := &Server{
		engine:      eng,
		runner:      runner,
		authService: auth.NewService(auth.NewRepository(pool), jwtSecret),
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("refund adjudication api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
