package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfed/gridworker/internal/codec"
	"github.com/openfed/gridworker/internal/config"
	"github.com/openfed/gridworker/internal/grid"
	"github.com/openfed/gridworker/internal/health"
	"github.com/openfed/gridworker/internal/logger"
	"github.com/openfed/gridworker/internal/model"
	"github.com/openfed/gridworker/internal/monitor"

	"github.com/rs/zerolog/log"
)

func main() {

	// Load config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Init logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("worker", cfg.Worker.Name).Str("grid", cfg.Worker.GridAddress).Msg("starting grid worker agent")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OS Signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	//------------------------------------------
	// START HEALTH SERVER
	//------------------------------------------
	healthSrv := health.New("8085")
	healthSrv.SetRunning(true)

	go func() {
		if err := healthSrv.Serve(); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()
	log.Info().Msg("health endpoint running on 127.0.0.1:8085/health")

	//------------------------------------------
	// START LINK MONITOR
	//------------------------------------------
	if cfg.Monitor.Enabled {
		mon := monitor.New(cfg.Monitor.Host, time.Duration(cfg.Monitor.IntervalSeconds)*time.Second, healthSrv)
		go mon.Run(ctx)
	}

	//------------------------------------------
	// GRID CLIENT
	//------------------------------------------
	client := grid.New(grid.Options{
		Address:     cfg.Worker.GridAddress,
		Secure:      cfg.Worker.Secure,
		Timeout:     time.Duration(cfg.Worker.TimeoutSeconds) * time.Second,
		RateLimitMB: cfg.Probe.RateLimitMB,
	}, codec.NewJSON())
	defer client.Close()

	authToken := os.Getenv(cfg.Worker.AuthTokenEnv)
	if _, err := client.Authenticate(authToken); err != nil {
		log.Error().Err(err).Msg("authentication rejected by grid")
		os.Exit(1)
	}
	log.Info().Msg("authenticated with grid")

	speed, err := client.ConnectionSpeed(ctx, cfg.Worker.Name)
	if err != nil {
		log.Error().Err(err).Msg("speed probe failed")
		os.Exit(1)
	}
	healthSrv.SetSpeed(speed)

	resp, err := client.CycleRequest(cfg.Worker.Name, cfg.Worker.Model, cfg.Worker.ModelVersion, speed)
	if err != nil {
		log.Error().Err(err).Msg("cycle request failed")
		os.Exit(1)
	}

	status, _ := resp.Data["status"].(string)
	log.Info().Str("status", status).Msg("cycle decision received")

	if status == model.CycleStatusAccepted {
		requestKey, _ := resp.Data["request_key"].(string)
		modelID := fmt.Sprint(resp.Data["model_id"])

		st, err := client.GetModel(ctx, cfg.Worker.Name, requestKey, modelID)
		if err != nil {
			log.Error().Err(err).Msg("model fetch failed")
			os.Exit(1)
		}
		log.Info().Int("tensors", len(st.Tensors)).Msg("model fetched, ready for training")
	}

	//------------------------------------------
	// WAIT FOR SHUTDOWN SIGNAL
	//------------------------------------------
	sig := <-sigChan
	log.Warn().Str("signal", sig.String()).Msg("shutdown signal received")

	cancel()
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("grid connection close failed")
	}
	healthSrv.SetRunning(false)

	log.Info().Msg("agent stopped cleanly")
}
