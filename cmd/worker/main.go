package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/devedd/neurochat/internal/config"
	"github.com/devedd/neurochat/internal/db"
	"github.com/devedd/neurochat/internal/logger"
	"github.com/devedd/neurochat/internal/maintenance"
	"github.com/devedd/neurochat/internal/store/rabbitmq"
	"github.com/devedd/neurochat/internal/store/redisstore"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel).Named("worker")
	defer func() { _ = log.Sync() }()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}

	rds := redisstore.New(redisstore.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		HMACSecret: cfg.RedisHMACSecret,
	}, log)
	defer func() { _ = rds.Close() }()

	sweeper := maintenance.NewSweeper(gdb, rds, cfg.StaleUserAfter, log)

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue, log)
	if err != nil {
		log.Fatal("publisher", zap.Error(err))
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare", zap.Error(err))
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// scheduler: publish the sweep, let the pool run it
	sched := cron.New(cron.WithLocation(time.UTC))
	if _, err := sched.AddFunc(cfg.DeactivationSchedule, func() {
		job, err := maintenance.NewJob(maintenance.KindDeactivateStaleUsers)
		if err != nil {
			log.Error("new job", zap.Error(err))
			return
		}
		if err := pub.Publish(ctx, job); err != nil {
			log.Error("schedule publish failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("bad deactivation schedule", zap.String("schedule", cfg.DeactivationSchedule), zap.Error(err))
	}
	sched.Start()

	log.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
		zap.String("schedule", cfg.DeactivationSchedule),
	)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				job, err := rabbitmq.DecodeJob(d.Body)
				if err != nil {
					wlog.Warn("bad message", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := sweeper.Handle(ctx, job); err != nil {
					wlog.Error("job failed", zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)),
						zap.Duration("cost", time.Since(start)), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					wlog.Error("ack failed", zap.String("job_id", job.ID), zap.Error(err))
				}
				wlog.Info("job done", zap.String("job_id", job.ID), zap.Duration("cost", time.Since(start)))
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			<-sched.Stop().Done()
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
