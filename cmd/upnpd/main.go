package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/internal/config"
	"github.com/seattlerb/upnp/internal/server"
	"github.com/seattlerb/upnp/internal/version"
	"github.com/seattlerb/upnp/pkg/device"
	"github.com/seattlerb/upnp/pkg/ssdp"
	"github.com/seattlerb/upnp/pkg/uuidgen"
)

func main() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	configPath := flag.String("config", "", "path to configuration file")
	friendlyName := flag.String("name", "upnpd light", "friendly name of the hosted device")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upnpd: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(*debug || cfg.GetBool("debug"))
	defer logger.Sync()

	logger.Info("upnpd starting", zap.String("version", version.Short()))

	if err := run(cfg, *friendlyName, logger); err != nil {
		logger.Error("upnpd failed", zap.Error(err))
		os.Exit(2)
	}

	logger.Info("upnpd stopped")
}

func run(cfg *config.Config, friendlyName string, logger *zap.Logger) error {
	cacheDir := cfg.GetString("cache.dir")

	gen, err := uuidgen.New(cacheDir)
	if err != nil {
		return err
	}

	reg := device.NewRegistry()
	if err := reg.Register(lightClass()); err != nil {
		return err
	}

	root, err := reg.Create(gen, cacheDir, "BinaryLight", friendlyName, nil)
	if err != nil {
		return err
	}

	// HTTP host first: the advertiser needs the bound port for
	// LOCATION headers.
	srv, err := server.New(root, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(cfg.GetString("http.host"), cfg.GetInt("http.port")); err != nil {
		return err
	}

	adv, err := ssdp.NewAdvertiser(ssdp.AdvertiserConfig{
		Conn: ssdp.Config{
			Group: cfg.GetString("ssdp.group"),
			Port:  cfg.GetInt("ssdp.port"),
			TTL:   cfg.GetInt("ssdp.ttl"),
		},
		HTTPPort:       srv.Port(),
		Server:         server.ServerName(root),
		NotifyInterval: cfg.GetDuration("ssdp.notify_interval"),
		MaxAge:         cfg.GetInt("ssdp.max_age"),
		AnswerAll:      cfg.GetBool("ssdp.answer_all"),
	}, root.Advertisements(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	advDone := make(chan error, 1)
	go func() { advDone <- adv.Run(ctx) }()

	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Serve() }()

	logger.Info("upnpd ready",
		zap.String("device", root.FriendlyName),
		zap.String("udn", root.UDN()),
		zap.Int("http_port", srv.Port()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-srvDone:
		return fmt.Errorf("http host exited: %w", err)
	}

	// Byebye first, then stop serving descriptions.
	cancel()
	<-advDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	return nil
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "upnpd: logger: %v\n", err)
		os.Exit(2)
	}
	return logger
}
