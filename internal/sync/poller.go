// Package sync runs the IMAP command loop: it polls a mailbox folder for
// unseen command emails and dispatches them.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/mail"
	"github.com/nhle/mail-gateway/internal/model"
	"github.com/nhle/mail-gateway/internal/store"
)

// Mailbox is an authenticated IMAP session.
type Mailbox interface {
	Select(folder string) error
	UnseenUIDs() ([]uint32, error)
	Fetch(uid uint32) (*mail.ParsedMessage, error)
	MarkSeen(uid uint32) error
	Close() error
}

// Dialer opens a new Mailbox session.
type Dialer func(ctx context.Context) (Mailbox, error)

// Config controls the polling loop.
type Config struct {
	Folder         string
	CommandSubject string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
}

// fallbackPollInterval is used when Config.PollInterval is not positive.
const fallbackPollInterval = 30 * time.Second

// Poller polls the command folder and dispatches every command email it
// finds. One message is handled at a time.
type Poller struct {
	dial       Dialer
	dispatcher *command.Dispatcher
	store      store.Store
	cfg        Config
	logger     zerolog.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      gosync.Mutex
	running bool
}

// New creates a Poller. The store records outcomes and remembers which
// messages were already handled.
func New(
	dial Dialer,
	dispatcher *command.Dispatcher,
	s store.Store,
	cfg Config,
	logger zerolog.Logger,
) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = fallbackPollInterval
	}
	if cfg.CommandSubject == "" {
		cfg.CommandSubject = "COMMAND"
	}
	return &Poller{
		dial:       dial,
		dispatcher: dispatcher,
		store:      s,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start runs the loop in a background goroutine until Stop is called or
// ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		defer close(p.doneCh)
		defer cancel()
		p.Run(ctx)
	}()
}

// Stop halts the loop and waits for the message in flight to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	done := p.doneCh
	p.running = false
	p.mu.Unlock()

	<-done
}

// Run connects, polls and reconnects until ctx is cancelled. A failed
// session is logged and retried after the reconnect delay.
func (p *Poller) Run(ctx context.Context) {
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Error().Err(err).Msg("IMAP_LOOP_ERROR")
		}
		if !sleep(ctx, p.cfg.ReconnectDelay) {
			return
		}
	}
}

// session runs one connected polling session.
func (p *Poller) session(ctx context.Context) error {
	mb, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer mb.Close()

	p.logger.Info().Msg("IMAP_LOGIN_SUCCESS")

	for {
		if err := p.PollOnce(ctx, mb); err != nil {
			return err
		}
		if !sleep(ctx, p.cfg.PollInterval) {
			return nil
		}
	}
}

// PollOnce selects the command folder and handles every unseen message
// in it.
func (p *Poller) PollOnce(ctx context.Context, mb Mailbox) error {
	if err := mb.Select(p.cfg.Folder); err != nil {
		p.logger.Error().Str("folder", p.cfg.Folder).Err(err).Msg("IMAP_SELECT_FAIL")
		return err
	}

	uids, err := mb.UnseenUIDs()
	if err != nil {
		p.logger.Error().Err(err).Msg("IMAP_SEARCH_FAIL")
		return err
	}
	if len(uids) > 0 {
		p.logger.Info().Int("count", len(uids)).Msg("IMAP_FOUND_UNSEEN")
	}

	for _, uid := range uids {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.handleMessage(ctx, mb, uid); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage processes a single message. Every path that fetched the
// message ends with it marked seen; a message the server cannot deliver
// is left unseen and skipped.
func (p *Poller) handleMessage(ctx context.Context, mb Mailbox, uid uint32) error {
	msg, err := mb.Fetch(uid)
	if err != nil {
		if errors.Is(err, mail.ErrMessageUnavailable) {
			p.logger.Error().Uint32("uid", uid).Err(err).Msg("IMAP_FETCH_FAIL")
			return nil
		}
		return err
	}

	if !strings.EqualFold(strings.TrimSpace(msg.Subject), p.cfg.CommandSubject) {
		p.logger.Info().
			Str("subject", msg.Subject).
			Str("from", msg.From).
			Msg("IMAP_SKIP_NON_COMMAND")
		return mb.MarkSeen(uid)
	}

	if msg.MessageID != "" {
		done, err := p.store.IsProcessed(ctx, msg.MessageID)
		if err != nil {
			p.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("IMAP_PROCESSED_LOOKUP_FAIL")
		} else if done {
			p.logger.Info().Str("message_id", msg.MessageID).Msg("IMAP_SKIP_ALREADY_PROCESSED")
			return mb.MarkSeen(uid)
		}
	}

	cmd, ok := command.Parse(msg.CommandBody())
	if !ok {
		p.logger.Warn().
			Str("subject", msg.Subject).
			Str("from", msg.From).
			Msg("IMAP_NO_COMMAND_PARSED")
		return mb.MarkSeen(uid)
	}

	meta := command.Meta{
		"subject":    msg.Subject,
		"from":       msg.From,
		"message_id": msg.MessageID,
	}
	p.logger.Info().
		Str("name", cmd.Name).
		Strs("args", cmd.Args).
		Interface("meta", meta).
		Msg("IMAP_COMMAND_RECEIVED")

	out := p.dispatcher.Dispatch(ctx, cmd, meta)

	encoded, err := json.Marshal(out)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%q", err.Error()))
	}
	p.logger.Info().
		Str("name", cmd.Name).
		RawJSON("result", encoded).
		Msg("IMAP_COMMAND_RESULT")

	p.record(ctx, out, msg.MessageID)

	return mb.MarkSeen(uid)
}

// record stores the outcome and the processed marker. Failures are
// logged; they never stop the loop.
func (p *Poller) record(ctx context.Context, out command.Outcome, messageID string) {
	rec := store.NewOutcomeRecord(out, model.OutcomeSourceIMAP)
	if err := p.store.RecordOutcome(ctx, rec); err != nil {
		p.logger.Error().Err(err).Msg("STORE_OUTCOME_FAIL")
	}
	if messageID == "" {
		return
	}
	if err := p.store.MarkProcessed(ctx, messageID); err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).Msg("STORE_PROCESSED_FAIL")
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
