package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riferrei/srclient"
	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/FraudFlow/pkg/alert"
	"github.com/siqueiraa/FraudFlow/pkg/api"
	"github.com/siqueiraa/FraudFlow/pkg/archive"
	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/config"
	"github.com/siqueiraa/FraudFlow/pkg/engine"
	"github.com/siqueiraa/FraudFlow/pkg/ingest"
	"github.com/siqueiraa/FraudFlow/pkg/kafka"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
	"github.com/siqueiraa/FraudFlow/pkg/state"
	"github.com/siqueiraa/FraudFlow/pkg/transform"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config")
	flag.Parse()

	log.Println("[Engine] Starting FraudFlow...")
	cfg := config.Load(*cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evaluator := risk.NewEvaluator(cfg.Risk.Policy())
	p := evaluator.Policy()
	log.Printf("[Engine] Risk policy: threshold=%.2f countries=%v", p.AmountThreshold, p.Countries())

	store, err := state.Open(cfg.State.Path)
	if err != nil {
		log.Fatalf("[State] %v", err)
	}
	defer store.Close()

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	output := outputCodec(&cfg)
	dispatcher := alert.NewDispatcher(evaluator, notifier(&cfg, producer), cfg.Alerts.Workers)

	g, ctx := errgroup.WithContext(ctx)

	startWatcher(ctx, g, *cfgPath, evaluator)
	startServer(ctx, g, &cfg, evaluator, producer, dispatcher)
	if cfg.Transform.Enabled {
		startTransformStage(ctx, g, &cfg, evaluator, producer, store, output)
	}
	if cfg.Alerts.Enabled {
		startAlertStage(ctx, g, &cfg, dispatcher, store, output)
	}

	if err := g.Wait(); err != nil {
		log.Printf("[Engine] Stopped with error: %v", err)
		return
	}
	log.Println("[Engine] Goodbye")
}

// outputCodec is the encoding of the enriched topic.
func outputCodec(cfg *config.AppConfig) codec.Codec {
	if !cfg.Kafka.UseAvro {
		return codec.NewJSONLines()
	}
	client := srclient.CreateSchemaRegistryClient(cfg.Kafka.SchemaRegistry)
	subject := cfg.Stream.EnrichedTopic + "-value"
	c, err := codec.NewAvro(client, subject)
	if err != nil {
		log.Fatalf("[SchemaRegistry] Failed to register schema for %s: %v", subject, err)
	}
	log.Printf("[SchemaRegistry] Subject=%s | ID=%d", subject, c.SchemaID())
	return c
}

// notifier publishes to the notification topic, or to the log when none is
// configured.
func notifier(cfg *config.AppConfig, producer *kafka.Producer) alert.Notifier {
	var n alert.Notifier = alert.LogNotifier{}
	if cfg.Notification.Target != "" {
		n = kafka.NewAlertNotifier(producer, cfg.Notification.Target)
		log.Printf("[Alert] Notifications go to topic %s", cfg.Notification.Target)
	} else {
		log.Println("[Alert] No notification target configured, alerts are logged only")
	}
	return n
}

func startWatcher(ctx context.Context, g *errgroup.Group, path string, evaluator *risk.Evaluator) {
	w, err := config.NewWatcher(path, evaluator)
	if err != nil {
		log.Printf("[Config] Watcher unavailable, policy hot-reload disabled: %v", err)
		return
	}
	g.Go(func() error {
		w.Run(ctx)
		return nil
	})
}

func startServer(ctx context.Context, g *errgroup.Group, cfg *config.AppConfig,
	evaluator *risk.Evaluator, producer *kafka.Producer, dispatcher *alert.Dispatcher) {
	handler := api.New(
		ingest.NewService(kafka.NewStream(producer, cfg.Stream.Name)),
		transform.New(evaluator, transform.WithEnvelope(transform.Base64{}), transform.WithWorkers(cfg.Transform.Workers)),
		dispatcher,
		cfg.Server.MaxBodyBytes,
	)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Printf("[API] Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("[API] Shutting down...")
		return srv.Shutdown(shutCtx)
	})
}

func startTransformStage(ctx context.Context, g *errgroup.Group, cfg *config.AppConfig,
	evaluator *risk.Evaluator, producer *kafka.Producer, store *state.Store, output codec.Codec) {
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Stream.Name, cfg.Kafka.GroupID+"-transform", store)
	if err != nil {
		log.Fatalf("[Kafka] %v", err)
	}

	stage := &engine.TransformStage{
		Source:      consumer,
		Publisher:   producer,
		Transformer: transform.New(evaluator, transform.WithOutputCodec(output), transform.WithWorkers(cfg.Transform.Workers)),
		Output:      output,
		Topic:       cfg.Stream.EnrichedTopic,
		BatchSize:   cfg.Transform.BatchSize,
		BatchWait:   cfg.Transform.BatchWait,
	}
	if cfg.Archive.S3.Enabled {
		s3, err := archive.NewS3(ctx, cfg.Archive.S3)
		if err != nil {
			log.Fatalf("[Archive] %v", err)
		}
		stage.Archiver = s3
	}

	g.Go(func() error {
		defer consumer.Close()
		return stage.Run(ctx)
	})
}

func startAlertStage(ctx context.Context, g *errgroup.Group, cfg *config.AppConfig,
	dispatcher *alert.Dispatcher, store *state.Store, output codec.Codec) {
	topic := cfg.AlertTopic()
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID+"-alerts", store)
	if err != nil {
		log.Fatalf("[Kafka] %v", err)
	}

	stage := &engine.AlertStage{
		Source:     consumer,
		Dispatcher: dispatcher,
		Trigger:    alert.TriggerEnriched,
		Codec:      output,
		BatchSize:  cfg.Alerts.BatchSize,
		BatchWait:  cfg.Alerts.BatchWait,
	}
	if cfg.Alerts.Source == config.SourceRaw {
		stage.Trigger = alert.TriggerRaw
		stage.Codec = codec.NewJSON()
	}
	log.Printf("[Alert] Consuming %s records from %s", stage.Trigger, topic)

	g.Go(func() error {
		defer consumer.Close()
		return stage.Run(ctx)
	})
}
