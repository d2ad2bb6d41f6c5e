package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	streamrecord "github.com/e7canasta/orion-care-sensor/modules/stream-record"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/httpapi"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/logging"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/metrics"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/notify"
)

// Version information
const version = "v0.1.0"

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "Path to YAML configuration file")
	envFile := flag.String("env", "", "Load environment variables from this file (default: .env if present)")
	debug := flag.Bool("debug", false, "Enable debug logging (overrides log.level)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stream-record %s\n", version)
		return exitOK
	}

	var envErr error
	if *envFile != "" {
		envErr = config.LoadDotEnv(*envFile)
	} else {
		envErr = config.LoadDotEnv()
	}
	if envErr != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load env file: %v\n", envErr)
		return exitConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  stream-record -config config/stream-record.yaml\n")
		fmt.Fprintf(os.Stderr, "  STREAM_RECORD_OUTPUT_DIR=/tmp/rec STREAM_RECORD_UDP_PORT=5000 stream-record\n\n")
		flag.PrintDefaults()
		return exitConfig
	}

	level := cfg.Log.Level
	if *debug {
		level = "debug"
	}
	logger := logging.Setup(level, cfg.Log.Format, os.Stdout)

	printBanner(cfg)

	bus := events.New()
	defer bus.Close()

	rec, err := streamrecord.NewRecorder(recorderConfig(cfg), streamrecord.WithEventBus(bus))
	if err != nil {
		logger.Error("stream-record: failed to create recorder", "error", err)
		return exitConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	met := metrics.New()
	metricsCh := make(chan events.Event, 64)
	if err := bus.Subscribe("metrics", metricsCh); err != nil {
		logger.Error("stream-record: failed to subscribe metrics", "error", err)
		return exitFailed
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		met.Consume(ctx, metricsCh)
	}()

	if cfg.MQTT.Broker != "" {
		pub := notify.NewPublisher(notify.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         1,
		})
		if err := pub.Connect(ctx); err != nil {
			// notifications are best effort; recording continues
			logger.Warn("stream-record: mqtt notifications disabled", "error", err)
		} else {
			notifyCh := make(chan events.Event, 64)
			if err := bus.Subscribe("mqtt", notifyCh); err != nil {
				logger.Error("stream-record: failed to subscribe mqtt", "error", err)
				return exitFailed
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				pub.Consume(ctx, notifyCh)
			}()
			defer pub.Disconnect()
		}
	}

	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(logger, rec.Stats, met.Handler()), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.Error("stream-record: status server error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Printf("\n\nReceived interrupt signal, draining...\n")
			rec.Interrupt()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigChan:
			logger.Warn("stream-record: second signal, aborting without drain")
			os.Exit(exitFailed)
		case <-ctx.Done():
		}
	}()

	report, runErr := rec.Run(ctx)
	cancel()
	wg.Wait()

	printReport(report)

	if runErr != nil {
		var pipeErr *streamrecord.PipelineError
		switch {
		case errors.As(runErr, &pipeErr):
			logger.Error("stream-record: pipeline error", "stage", pipeErr.Source, "error", runErr)
		case errors.Is(runErr, streamrecord.ErrIncompleteOutput):
			logger.Error("stream-record: output file is not playable", "error", runErr)
		default:
			logger.Error("stream-record: recording failed", "error", runErr)
		}
		return exitFailed
	}

	logger.Info("stream-record: completed successfully")
	return exitOK
}

// recorderConfig converts the file configuration into recorder settings
func recorderConfig(cfg *config.Config) streamrecord.Config {
	return streamrecord.Config{
		OutputDir:          cfg.OutputDir,
		ChunkDuration:      time.Duration(cfg.ChunkSeconds) * time.Second,
		UDPPort:            uint16(cfg.UDPPort),
		Codec:              streamrecord.ParseCodec(cfg.Codec),
		ClockRate:          uint32(cfg.ClockRate),
		AllowCodecFallback: cfg.CodecFallback,
		JitterLatency:      time.Duration(cfg.JitterLatencyMS) * time.Millisecond,
		Rotate:             cfg.Rotate,
		DrainTimeout:       time.Duration(cfg.DrainTimeoutS) * time.Second,
		VerifyOutput:       cfg.VerifyEnabled(),
		MaxRetries:         cfg.MaxRetries,
		RetryDelay:         time.Duration(cfg.RetryDelayS) * time.Second,
		MaxRetryDelay:      time.Duration(cfg.MaxRetryDelayS) * time.Second,
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║          Stream Record - Orion 2.0 Module                 ║\n")
	fmt.Printf("║                      Version %s                       ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  UDP Port:      %d\n", cfg.UDPPort)
	fmt.Printf("  Codec:         %s\n", cfg.Codec)
	fmt.Printf("  Output Dir:    %s\n", cfg.OutputDir)
	if cfg.ChunkSeconds > 0 {
		fmt.Printf("  Chunk:         %ds (rotate: %v)\n", cfg.ChunkSeconds, cfg.Rotate)
	} else {
		fmt.Printf("  Chunk:         unlimited (until interrupted)\n")
	}
	if cfg.HTTPAddr != "" {
		fmt.Printf("  Status:        http://%s/healthz\n", cfg.HTTPAddr)
	}
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT:          %s (%s/*)\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	}
	fmt.Printf("\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")
}

func printReport(report *streamrecord.Report) {
	if report == nil {
		return
	}

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	fmt.Printf("  Sessions:           %d\n", report.Sessions)
	fmt.Printf("  Retries:            %d\n", report.Retries)
	for _, r := range report.Recordings {
		status := "ok"
		if !r.OK() {
			status = r.State.String()
		}
		fmt.Printf("  %-40s %8.2f MB  %-9s %s\n",
			r.Path,
			float64(r.BytesWritten)/1024/1024,
			r.Cause,
			status,
		)
	}
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
