package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/go-common/slackbot"
	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/clambin/zoned/internal/bot"
	"github.com/clambin/zoned/internal/collector"
	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/internal/controller"
	"github.com/clambin/zoned/internal/controller/notifier"
	"github.com/clambin/zoned/internal/health"
	"github.com/clambin/zoned/internal/mqtt"
	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = cobra.Command{
	Use:   "monitor",
	Short: "Runs the zone controllers",
	RunE:  run,
}

func run(cmd *cobra.Command, _ []string) error {
	logger := charmer.GetLogger(cmd)
	m, err := New(viper.GetViper(), cmd.Root().Version, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("zoned starting", "version", cmd.Root().Version)
	defer logger.Info("zoned stopped")
	return m.Run(ctx)
}

func New(cfg *viper.Viper, version string, registry prometheus.Registerer, logger *slog.Logger) (*taskmanager.Manager, error) {
	// Do we have controllers?
	controllers, err := maybeLoadControllers(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "controllers.yaml"), logger)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.GetString("database.path"))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return taskmanager.New(makeTasks(cfg, controllers, db, version, registry, logger)...), nil
}

func maybeLoadControllers(path string, logger *slog.Logger) (configuration.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return configuration.Configuration{}, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	logger.Debug("loading controllers", "path", path)
	return configuration.Load(f)
}

func makeTasks(cfg *viper.Viper, controllers configuration.Configuration, db *store.Store, version string, registry prometheus.Registerer, l *slog.Logger) []taskmanager.Task {
	var tasks []taskmanager.Task

	// MQTT broker connection
	broker := mqtt.NewClient(mqtt.Config{
		Broker:    cfg.GetString("mqtt.broker"),
		ClientID:  cfg.GetString("mqtt.clientId"),
		Username:  cfg.GetString("mqtt.username"),
		Password:  cfg.GetString("mqtt.password"),
		BaseTopic: cfg.GetString("mqtt.topic"),
	}, l.With("component", "mqtt"))
	tasks = append(tasks, broker)

	// Poller
	p := poller.New(broker, cfg.GetString("mqtt.topic"), cfg.GetDuration("poller.warmup"), l.With("component", "poller"))
	tasks = append(tasks, p)

	// Slack notifications
	var sender notifier.SlackSender
	token := cfg.GetString("slack.token")
	if token != "" {
		sender = slack.New(token)
	}

	// Controllers
	var m *controller.Manager
	if len(controllers.Controllers) > 0 {
		metrics := controller.NewMetrics()
		if registry != nil {
			registry.MustRegister(metrics)
		}
		m = controller.NewManager(controllers, p, broker, db, sender, metrics, l.With("component", "controller"))
		tasks = append(tasks, m)

		// Slack bot
		if token != "" && cfg.GetBool("slack.bot") {
			app := slackbot.New(
				token,
				slackbot.WithName("zoned "+version),
				slackbot.WithLogger(l.With(slog.String("component", "slackbot"))),
			)
			tasks = append(tasks, app, bot.New(app, m, l.With("component", "bot")))
		}
	} else {
		l.Warn("no controllers configured. controller will not run")
	}

	// Collector
	coll := &collector.Collector{Poller: p, Logger: l.With("component", "collector")}
	if m != nil {
		coll.Controllers = m
	}
	if registry != nil {
		registry.MustRegister(coll)
	}
	tasks = append(tasks, coll)

	// Prometheus Server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health Endpoint
	var statuses health.Statuses
	if m != nil {
		statuses = m
	}
	h := health.New(p, statuses, l.With("component", "health"))
	tasks = append(tasks, h)
	r := http.NewServeMux()
	r.Handle("/health", h)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), r))

	return tasks
}
