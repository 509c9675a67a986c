// Command sendhook posts a signed Forge webhook to a running receiver.
//
//	sendhook -url http://localhost:8080/api/webhook -data '{"event":"form.submitted","data":{}}'
//	sendhook -file payload.json
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/Priya8975/forge-storefront/internal/logger"
	"github.com/Priya8975/forge-storefront/internal/sender"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "http://localhost:8080/api/webhook", "receiver endpoint")
	secret := flag.String("secret", os.Getenv("FORGE_WEBHOOK_SECRET"), "shared signing secret")
	file := flag.String("file", "", "read the payload from this file")
	data := flag.String("data", `{"event":"form.submitted","data":{}}`, "inline payload, ignored when -file is set")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	log, err := logger.New(false, "info")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *secret == "" {
		log.Fatal("no secret: pass -secret or set FORGE_WEBHOOK_SECRET")
	}

	payload := []byte(*data)
	if *file != "" {
		payload, err = os.ReadFile(*file)
		if err != nil {
			log.Fatal("failed to read payload", zap.String("file", *file), zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := sender.New(*secret, *timeout, log).Send(ctx, *url, payload)
	if err != nil {
		log.Fatal("delivery failed", zap.Error(err))
	}
	if !res.OK() {
		log.Sync()
		os.Exit(1)
	}
}
