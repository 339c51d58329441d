package main

import (
	"context"
	"net/http"
	"os"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/Tyrowin/roomchat/internal/history/memory"
	"github.com/Tyrowin/roomchat/internal/history/natsstore"
	"github.com/Tyrowin/roomchat/internal/history/sqlstore"
	"github.com/Tyrowin/roomchat/internal/server"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		os.Exit(serve(c))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve runs the relay until a termination signal and returns the exit code.
func serve(c *config.Config) int {
	logger := newLogger(c.Level())
	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitHash,
		"store":   c.StoreDriver,
	}).Info("Starting roomchat")

	store, err := openStore(c, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open history store")
		return 1
	}

	archiver := chat.NewArchiver(store, chat.ArchiverConfig{
		QueueSize: c.PersistQueue,
		Workers:   c.PersistWorkers,
		Timeout:   c.PersistTimeout,
	}, logger.WithField("component", "archiver"))
	archiver.Start()

	srv := server.New(c, store, archiver, logger)
	srv.Run()

	httpServer := server.CreateServer(c.Port, srv.Routes())
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	// Operations run concurrently, so the ordered teardown lives in one.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		c.ShutdownAfter,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated")
				return shutdown(ctx, c, httpServer, srv, archiver, store, logger)
			},
		},
	)

	exitCode := <-wait
	logger.WithField("code", exitCode).Info("Application exited")
	return exitCode
}

// shutdown stops intake first and closes the store last so that queued
// messages can still be written. Every step runs; the first failure is
// returned.
func shutdown(ctx context.Context, c *config.Config, httpServer *http.Server, srv *server.Server, archiver *chat.Archiver, store history.Store, logger logrus.FieldLogger) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"http server", func() error { return server.ShutdownServer(ctx, httpServer) }},
		{"hub", func() error { return srv.Hub().Shutdown(c.ShutdownAfter) }},
		{"archiver", func() error { return archiver.Stop(ctx) }},
		{"history store", store.Close},
	}

	var first error
	for _, step := range steps {
		if err := step.run(); err != nil {
			logger.WithError(err).WithField("step", step.name).Error("Shutdown step failed")
			if first == nil {
				first = errors.Wrap(err, step.name)
			}
		}
	}
	return first
}

func openStore(c *config.Config, logger *logrus.Logger) (history.Store, error) {
	switch c.StoreDriver {
	case config.StoreSQLite:
		return sqlstore.OpenSQLite(c.SQLitePath, c.HistoryLimit)
	case config.StoreJetStream:
		return natsstore.Connect(c.NATSURL, natsstore.Config{
			Stream:        c.NATSStream,
			SubjectPrefix: c.NATSSubjectPrefix,
			MaxAge:        c.NATSMaxAge,
			MaxPage:       c.HistoryLimit,
			Logger:        logger.WithField("component", "history"),
		})
	case config.StoreMemory:
		return memory.NewStore(c.HistoryLimit), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", c.StoreDriver)
	}
}
