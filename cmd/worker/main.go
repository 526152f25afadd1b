package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/creator-scout/internal/bootstrap"
	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/config"
	"github.com/suPer8Hu/creator-scout/internal/db"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/enrich"
	"github.com/suPer8Hu/creator-scout/internal/jobs"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/store/rabbitmq"
	"github.com/suPer8Hu/creator-scout/internal/store/redisstore"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)
	metrics.MustRegister()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := bootstrap.Providers(cfg)
	llm, err := reg.Default(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("default ai provider")
	}
	searchLLM, err := bootstrap.SearchProvider(ctx, reg, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("search ai provider")
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueuePrefix, bootstrap.TopicNames())
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	store := task.NewStore(gdb, log)
	chatSvc := chat.NewService(chat.NewRepo(gdb), reg, task.NewDispatcher(store, pub, log), cfg.ChatContextWindowSize, log)

	runner := &jobs.Runner{
		Store:     store,
		Extractor: discovery.LLMExtractor{Provider: llm},
		Searcher:  discovery.ProviderSearcher{Provider: searchLLM},
		Fetcher:   bootstrap.Scraper(cfg, log),
		Evaluator: enrich.Scorer{Provider: llm},
		Sink:      enrich.NewRepo(gdb),
		Coord:     rs,
		Completer: chatSvc,
		Log:       log,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	//  strict concurrency control
	concurrency := workerConcurrency(cfg.WorkerConcurrency)
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	deliveries := make(chan amqp.Delivery)
	var consumers sync.WaitGroup
	for _, topic := range bootstrap.TopicNames() {
		queue := rabbitmq.QueueName(cfg.RabbitQueuePrefix, topic)
		if err := rabbitmq.DeclareTopology(ch, queue); err != nil {
			log.Fatal().Err(err).Msg("declare topology")
		}
		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			log.Fatal().Err(err).Str("queue", queue).Msg("consume")
		}
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}()
	}

	log.Info().Str("prefix", cfg.RabbitQueuePrefix).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobCh := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobCh {
				handleDelivery(ctx, runner, workerID, d)
			}
		}(i)
	}

	closed := make(chan struct{})
	go func() {
		consumers.Wait()
		close(closed)
	}()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobCh)
			wg.Wait()
			return

		case <-closed:
			log.Error().Msg("delivery channels closed")
			close(jobCh)
			wg.Wait()
			return

		case d := <-deliveries:
			jobCh <- d
		}
	}
}

func handleDelivery(ctx context.Context, runner *jobs.Runner, workerID int, d amqp.Delivery) {
	log := runner.Log.With().Int("worker", workerID).Str("queue", d.RoutingKey).Logger()

	var m rabbitmq.JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.TaskID == "" {
		log.Warn().Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := runner.Handle(ctx, m.TaskID); err != nil {
		log.Error().Err(err).Str("task_id", m.TaskID).Dur("cost", time.Since(start)).Msg("job failed, dead-lettering")
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Warn().Err(err).Str("task_id", m.TaskID).Msg("ack failed")
	}
}
