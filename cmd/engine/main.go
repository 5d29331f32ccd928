package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Hritul2/exchange-app/internal/engine"
	"github.com/Hritul2/exchange-app/internal/ingest"
	"github.com/Hritul2/exchange-app/internal/ops"
	"github.com/Hritul2/exchange-app/internal/publish"
	"github.com/Hritul2/exchange-app/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("engine: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	redisAddr := flag.String("redis-addr", "", "Redis address override")
	snapshotPath := flag.String("snapshot-path", "", "Snapshot file override")
	profiling := flag.Bool("profiling", false, "Enable pyroscope profiling")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	if *redisAddr != "" {
		loaded.RedisAddr = *redisAddr
	}
	if *snapshotPath != "" {
		loaded.SnapshotPath = *snapshotPath
		loaded.SnapshotEnabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *profiling {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "exchange/engine",
			ServerAddress:   "http://localhost:4040",
			Tags: map[string]string{
				"env": "local",
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	client := conn.New(conn.Option{
		Addr:     loaded.RedisAddr,
		Password: loaded.RedisPassword,
		DB:       loaded.RedisDB,
	})
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		return err
	}

	publisher := publish.NewRedisPublisher(client, publish.Config{DBQueue: loaded.DBQueue})
	eng := engine.New(engine.Options{
		BaseCurrency:     loaded.BaseCurrency,
		Markets:          loaded.Markets,
		BootstrapUsers:   loaded.BootstrapUsers,
		BootstrapBalance: loaded.BootstrapBalance,
		SnapshotPath:     loaded.SnapshotPath,
		SnapshotInterval: loaded.SnapshotInterval,
		SnapshotEnabled:  loaded.SnapshotEnabled,
	}, publisher)
	consumer := ingest.NewConsumer(client, loaded.CommandQueue, eng)

	logs.Infof("engine started, markets=%v command_queue=%s", eng.Markets(), loaded.CommandQueue)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		publisher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	<-ctx.Done()
	logs.Info("shutting down")
	wg.Wait()
	publisher.Close()
	return nil
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
