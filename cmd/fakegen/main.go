package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siqueiraa/FraudFlow/pkg/config"
	"github.com/siqueiraa/FraudFlow/pkg/faker"
	"github.com/siqueiraa/FraudFlow/pkg/ingest"
	"github.com/siqueiraa/FraudFlow/pkg/kafka"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config")
	ratio := flag.Float64("high-risk", 0.1, "Share of generated transactions that should be high risk")
	count := flag.Int("count", 0, "Stop after this many transactions (0 runs until interrupted)")
	flag.Parse()

	cfg := config.Load(*cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	svc := ingest.NewService(kafka.NewStream(producer, cfg.Stream.Name))
	gen := faker.New(time.Now().UnixNano(), *ratio)

	log.Printf("[Fakegen] Sending to %s every %v (high-risk share %.2f)", cfg.Stream.Name, cfg.Emitter.Interval, *ratio)
	sent := gen.Emit(ctx, svc, cfg.Emitter.Interval, *count)
	log.Printf("[Fakegen] Sent %d transaction(s)", sent)
}
