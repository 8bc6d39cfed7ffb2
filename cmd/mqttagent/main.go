package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/gonzalop/mqsession"
	"github.com/gonzalop/mqsession/internal/agent"
	"github.com/gonzalop/mqsession/internal/config"
	"github.com/gonzalop/mqsession/internal/indicator"
	"github.com/gonzalop/mqsession/internal/logging"
)

var Flags = []cli.Flag{
	FlagConfig,
	FlagLogLevel,
	FlagLogWriter,
	FlagBrokerURL,
	FlagClientID,
}

// service holds what Before prepares for Action.
type service struct {
	logOut io.Writer
	cfg    *config.Config
	logger zerolog.Logger
}

func newApp(logOut io.Writer) (*cli.App, *service) {
	svc := &service{
		logOut: logOut,
		logger: zerolog.New(logOut).With().Timestamp().Logger(),
	}
	app := &cli.App{
		Name:    "mqttagent",
		Usage:   "keeps a device connected to an MQTT broker and reports its status",
		Version: "v0.1.0",
		Flags:   Flags,
		Before:  svc.setup,
		Action:  svc.run,
	}
	return app, svc
}

// setup loads the config file, applies flag overrides and builds the logger.
func (svc *service) setup(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(FlagConfig.Name))
	if err != nil {
		return err
	}

	if ctx.IsSet(FlagLogLevel.Name) {
		cfg.Logging.Level = ctx.String(FlagLogLevel.Name)
	}
	if ctx.IsSet(FlagLogWriter.Name) {
		cfg.Logging.Format = ctx.String(FlagLogWriter.Name)
	}
	if ctx.IsSet(FlagBrokerURL.Name) {
		cfg.Broker.URL = ctx.String(FlagBrokerURL.Name)
	}
	if ctx.IsSet(FlagClientID.Name) {
		cfg.Broker.ClientID = ctx.String(FlagClientID.Name)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(svc.logOut, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return err
	}
	svc.cfg = cfg
	svc.logger = logger
	return nil
}

func (svc *service) run(ctx *cli.Context) error {
	cfg, logger := svc.cfg, svc.logger
	logger.Info().Str("broker", cfg.Broker.URL).Str("client_id", cfg.Broker.ClientID).Msg("service starting...")

	appCtx, cancel := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := cfg.SessionOptions(logging.NewSlog(logger.With().Str("module", "session").Logger()))
	if err != nil {
		return err
	}
	session, err := mqsession.New(cfg.Broker.URL, opts...)
	if err != nil {
		return err
	}

	light := indicator.New(os.Stdout, 0)
	defer light.Close()

	commandLog := logger.With().Str("module", "command").Logger()
	a, err := agent.New(agent.Params{
		Session:      session,
		Light:        light,
		StatusTopic:  cfg.Device.StatusTopic,
		CommandTopic: cfg.Device.CommandTopic,
		CommandQoS:   mqsession.QoS(cfg.Device.CommandQoS),
		InitialDelay: cfg.InitialDelay(),
		MaxDelay:     cfg.MaxDelay(),
		Workers:      cfg.Device.Workers,
		Handler: func(ctx context.Context, topic string, payload []byte) error {
			commandLog.Info().Str("topic", topic).Int("size", len(payload)).Msg("command handled")
			return nil
		},
		Log: logger.With().Str("module", "agent").Logger(),
	})
	if err != nil {
		_ = session.Close()
		return err
	}

	logger.Info().Msg("service started")
	if err := a.Run(appCtx); err != nil {
		return err
	}

	logger.Info().Msg("service terminating...")
	return nil
}

func main() {
	app, svc := newApp(os.Stderr)
	if err := app.Run(os.Args); err != nil {
		svc.logger.Err(err).Msg("service terminated")
		os.Exit(1)
	}
}
