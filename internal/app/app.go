// Package app wires the gateway together: configuration, logging,
// secrets, the audit store, the mail sender, the command registry and
// the two ingress paths (HTTP and IMAP).
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/handlers"
	"github.com/nhle/mail-gateway/internal/httpserver"
	"github.com/nhle/mail-gateway/internal/logging"
	"github.com/nhle/mail-gateway/internal/mail"
	"github.com/nhle/mail-gateway/internal/model"
	"github.com/nhle/mail-gateway/internal/store"
	appsync "github.com/nhle/mail-gateway/internal/sync"
)

// App is a fully wired gateway. Nothing listens or polls until Run.
type App struct {
	cfg     *model.AppConfig
	secrets Secrets

	root       zerolog.Logger
	requestLog zerolog.Logger
	sendLog    zerolog.Logger
	logCloser  io.Closer

	store      *store.SQLiteStore
	sender     mail.Sender
	registry   *command.Registry
	dispatcher *command.Dispatcher
	server     *httpserver.Server
	poller     *appsync.Poller
}

// New builds an App from cfg. The caller must Close it.
func New(cfg *model.AppConfig, secrets Secrets) (*App, error) {
	root, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		secrets:    secrets,
		root:       root,
		requestLog: logging.Named(root, logging.RequestLogger),
		sendLog:    logging.Named(root, logging.SendLogger),
		logCloser:  logCloser,
	}

	a.store, err = store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	base, err := newSender(cfg, secrets, a.sendLog)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.sender = mail.NewRecordingSender(base, a.store, func(err error) {
		a.sendLog.Error().Err(err).Msg("STORE_DELIVERY_FAIL")
	})

	a.registry = command.NewRegistry()
	handlers.RegisterAll(a.registry, a.handlerDeps())
	a.dispatcher = command.NewDispatcher(a.registry, logging.NewSink(a.requestLog))

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Dispatcher:    a.dispatcher,
		Sender:        a.sender,
		Store:         a.store,
		APIKey:        secrets.APIKey,
		RequestLogger: a.requestLog,
		SendLogger:    a.sendLog,
	})

	if cfg.IMAP.Enabled {
		a.poller = appsync.New(a.imapDialer(), a.dispatcher, a.store, appsync.Config{
			Folder:         cfg.IMAP.Folder,
			CommandSubject: cfg.IMAP.CommandSubject,
			PollInterval:   cfg.IMAP.PollInterval(),
			ReconnectDelay: cfg.IMAP.ReconnectDelay(),
		}, a.requestLog)
	}

	return a, nil
}

func (a *App) handlerDeps() handlers.Deps {
	hc := a.cfg.Handlers

	loc, err := time.LoadLocation(hc.TimeZone)
	if err != nil {
		a.root.Warn().Str("time_zone", hc.TimeZone).Err(err).Msg("unknown time zone, using local time")
		loc = time.Local
	}

	deps := handlers.Deps{
		Sender:     a.sender,
		Recipients: hc.NotifyRecipients,
		FromName:   hc.FromName,
		Location:   loc,
		DeviceHost: hc.DeviceHost,
	}
	if hc.RelayURL != "" {
		deps.Relay = handlers.NewRelayClient(
			hc.RelayURL,
			a.secrets.APIKey,
			time.Duration(hc.RelayTimeoutSec)*time.Second,
			hc.RelayDefaultSubject,
			hc.RelayDefaultFromName,
		)
	}
	return deps
}

func (a *App) imapDialer() appsync.Dialer {
	client := mail.NewIMAPClient(
		a.cfg.IMAP.Host,
		a.cfg.IMAP.Port,
		a.cfg.Mail.From,
		a.secrets.EmailPassword,
		a.cfg.IMAP.TLS,
	)
	return func(ctx context.Context) (appsync.Mailbox, error) {
		mb, err := client.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return mb, nil
	}
}

// Logger returns the root logger.
func (a *App) Logger() zerolog.Logger {
	return a.root
}

// Commands lists the registered command names.
func (a *App) Commands() []string {
	return a.registry.Names()
}

// Dispatch parses text and dispatches it, recording the outcome under
// source. It reports false when text holds no command.
func (a *App) Dispatch(
	ctx context.Context, text, source string, meta command.Meta,
) (command.Outcome, bool) {
	cmd, ok := command.Parse(text)
	if !ok {
		return command.Outcome{}, false
	}

	out := a.dispatcher.Dispatch(ctx, cmd, meta)
	if err := a.store.RecordOutcome(ctx, store.NewOutcomeRecord(out, source)); err != nil {
		a.requestLog.Error().Err(err).Msg("STORE_OUTCOME_FAIL")
	}
	return out, true
}

// Run serves HTTP and polls IMAP until ctx is cancelled or the HTTP
// server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Run()
	}()

	a.root.Info().
		Str("listen_addr", a.cfg.HTTP.ListenAddr).
		Bool("imap", a.poller != nil).
		Str("provider", a.cfg.Mail.Provider).
		Msg("gateway started")

	if a.poller != nil {
		a.poller.Start(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	if a.poller != nil {
		a.poller.Stop()
	}
	if err := a.server.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutting down http server: %w", err)
	}

	a.root.Info().Msg("gateway stopped")
	return runErr
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
