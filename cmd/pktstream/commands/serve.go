package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livp123/pktstream/internal/broadcast"
	"github.com/livp123/pktstream/internal/capture"
	"github.com/livp123/pktstream/internal/config"
	"github.com/livp123/pktstream/internal/utils/logger"
	"github.com/livp123/pktstream/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture server",
	// Short: 启动抓包服务
	Long: `Start the HTTP/websocket server. Viewers start captures and receive live records.
启动 HTTP/websocket 服务，观察端可发起抓包并实时接收记录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.GetConfig()
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Server.Listen = listen
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, logger.Get(cmd.Context()))
	},
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Listen address, overrides server.listen")
}

// captureOptions maps the capture and producer sections onto session options.
func captureOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		Output:         cfg.Producer.Output,
		PollInterval:   cfg.Capture.PollInterval.Std(),
		GracePeriod:    cfg.Capture.GracePeriod.Std(),
		DrainBuffer:    cfg.Capture.DrainBuffer.Std(),
		StatusEvery:    cfg.Capture.StatusEvery,
		FinalCountdown: cfg.Capture.FinalCountdown,
		TopN:           cfg.Capture.TopN,
		MaxLineBytes:   cfg.Capture.MaxLineBytes,
		MaxDuration:    cfg.Capture.MaxDuration,
		WatchFS:        cfg.Capture.WatchFS,
	}
}

// runServe wires the pipeline and blocks until ctx is cancelled or the server fails.
// runServe 组装处理流程并阻塞，直到 ctx 取消或服务出错。
func runServe(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	filter, err := capture.NewFilter(cfg.Capture.Filter)
	if err != nil {
		return err
	}
	if filter != nil {
		log.Infof("🔍 Record filter: %s", filter)
	}

	hub := broadcast.New(cfg.Viewers.QueueSize, log.Named("broadcast"))
	if cfg.NATS.Enabled {
		nc, err := broadcast.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, log.Named("nats"))
		if err != nil {
			log.Warnf("⚠️  NATS unavailable, continuing without it: %v", err)
		} else if err := hub.Register(nc); err != nil {
			return err
		}
	}

	launcher := capture.NewExecLauncher(cfg.Producer.Path, cfg.Producer.Args, log.Named("producer"))
	manager := capture.NewManager(ctx, captureOptions(cfg), launcher, filter, hub, log.Named("session"))
	srv := web.NewServer(cfg, manager, hub, log.Named("web"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		hub.Close()
		manager.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	manager.Wait()
	return err
}
