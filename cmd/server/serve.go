package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thereceipt/receipt-dispatcher/internal/api"
	"github.com/thereceipt/receipt-dispatcher/internal/config"
	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/logging"
	"github.com/thereceipt/receipt-dispatcher/internal/metrics"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
	"github.com/thereceipt/receipt-dispatcher/internal/tui"
)

func buildServeCommand() *cobra.Command {
	var port int
	var withTUI bool
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("tui") {
				cfg.TUI.Enabled = withTUI
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 12212, "HTTP port")
	cmd.Flags().BoolVar(&withTUI, "tui", false, "run the operator console")
	cmd.Flags().BoolVar(&debug, "debug", false, "log a hex preview of every payload")

	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	// The console owns the terminal, so with the TUI every entry goes to the
	// sinks only
	fanout := logging.NewFanout()
	var logger *zap.Logger
	if cfg.TUI.Enabled {
		logger = zap.New(logging.NewSinkCore(fanout, level))
	} else {
		base, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		logger = logging.WithSink(base, fanout, level)
	}
	defer logger.Sync()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(prometheus.NewRegistry())
	}

	manager := printer.NewManager(
		printer.WithEnumerators(enumerators(cfg, reg)...),
		printer.WithPaperWidth(printer.PaperWidth(cfg.Print.PaperSize)),
		printer.WithProbeTimeout(cfg.Print.ProbeTimeout),
		printer.WithLogger(logger.Named("printer")),
		printer.WithObserver(func(scope printer.Scope, found int, err error) {
			if collector != nil {
				collector.RecordDiscovery(string(scope), found, err)
			}
		}),
	)

	dispatchConfig := dispatch.NewConfig()
	dispatchConfig.NetworkTimeout = cfg.Print.NetworkTimeout
	dispatchConfig.SerializeDevices = cfg.Print.SerializeDevices
	dispatchConfig.PaperSize = cfg.Print.PaperSize
	dispatchConfig.SetDebug(cfg.Debug)
	dispatchConfig.OnDebugChange(func(enabled bool) {
		logger.Info("Debug mode changed", zap.Bool("enabled", enabled))
	})

	hub := api.NewHub(logger.Named("ws"))
	fanout.Add(hub)

	dispatcher := dispatch.New(
		dispatch.NewResolver(manager, cfg.Print.NetworkTimeout),
		dispatchConfig,
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithMetrics(collector),
		dispatch.WithStatusReader(manager),
		dispatch.WithResultHook(hub.BroadcastResult),
	)

	queue := dispatch.NewQueue(dispatcher, logger.Named("queue"), collector)
	defer queue.Stop()
	queue.OnUpdate(hub.BroadcastJob)

	server := api.NewServer(manager, dispatcher, queue, reg,
		api.WithLogger(logger.Named("api")),
		api.WithMetrics(collector),
		api.WithHub(hub),
	)

	var console *tui.App
	if cfg.TUI.Enabled {
		console = tui.New(manager, dispatcher, queue, reg, cfg.Addr())
		fanout.Add(console)
	}

	monitor := printer.NewMonitor(manager, cfg.Discovery.MonitorInterval, logger.Named("monitor"))
	monitor.OnAdded(func(d printer.Descriptor) {
		hub.BroadcastPrinterAdded(d)
		if console != nil {
			console.NotifyPrinters()
		}
	})
	monitor.OnRemoved(func(d printer.Descriptor) {
		hub.BroadcastPrinterRemoved(d)
		if console != nil {
			console.NotifyPrinters()
		}
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	logger.Info("Starting receipt dispatcher",
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()),
		zap.Bool("tui", cfg.TUI.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Int("network_printers", reg.Len()),
	)

	if console == nil {
		return ignoreClosed(server.Run(ctx, cfg.Addr()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		err := server.Run(ctx, cfg.Addr())
		if err := ignoreClosed(err); err != nil {
			logger.Error("Server stopped", zap.Error(err))
		}
		serverErr <- err
		cancel()
	}()

	if err := console.Run(ctx); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	cancel()
	return ignoreClosed(<-serverErr)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, err := registry.New(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	for _, h := range cfg.Discovery.NetworkHosts {
		if _, err := reg.Add(h.Host, h.Port, h.Name, h.Model); err != nil {
			return nil, fmt.Errorf("network host %q: %w", h.Host, err)
		}
	}
	return reg, nil
}

func enumerators(cfg *config.Config, reg *registry.Registry) []printer.Enumerator {
	list := printer.DefaultEnumerators(cfg.Discovery.USBVendorIDs)
	list = append(list, &printer.NetworkEnumerator{Source: reg})
	if cfg.Discovery.Serial {
		list = append(list, &printer.SerialEnumerator{})
	}
	return list
}
