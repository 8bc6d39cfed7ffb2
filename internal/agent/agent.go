// Package agent runs a device on top of an MQTT session: it announces the
// device on a status topic, listens on a command topic and keeps the
// connection up.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/gonzalop/mqsession"
)

// Status payloads. OfflinePayload is meant for the will message.
var (
	OnlinePayload  = []byte("1")
	OfflinePayload = []byte("0")
)

const disconnectTimeout = 5 * time.Second

// Session is the part of *mqsession.Session the agent drives.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Close() error
	Events() <-chan mqsession.Event
	Publish(topic string, payload []byte, opts ...mqsession.PublishOption) *mqsession.Handle
	Subscribe(filter string, qos mqsession.QoS) *mqsession.Handle
	Unsubscribe(filter string) *mqsession.Handle
}

// Light shows the connection status.
type Light interface {
	Lit()
	Blink()
	Off()
}

// CommandHandler processes a message received on the command topic.
type CommandHandler func(ctx context.Context, topic string, payload []byte) error

type Params struct {
	Session Session
	Light   Light

	StatusTopic  string
	CommandTopic string
	CommandQoS   mqsession.QoS

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Workers bounds how many commands are handled at once.
	Workers int
	Handler CommandHandler

	Log zerolog.Logger
}

type Agent struct {
	params    Params
	backoff   *Backoff
	reconnect chan struct{}

	log zerolog.Logger
}

func New(params Params) (*Agent, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("Session is nil")
	}
	if params.Light == nil {
		return nil, fmt.Errorf("Light is nil")
	}
	if err := mqsession.ValidateTopic(params.StatusTopic); err != nil {
		return nil, fmt.Errorf("status topic: %w", err)
	}
	if err := mqsession.ValidateFilter(params.CommandTopic); err != nil {
		return nil, fmt.Errorf("command topic: %w", err)
	}
	if params.InitialDelay <= 0 || params.MaxDelay < params.InitialDelay {
		return nil, fmt.Errorf("invalid reconnect delays %v..%v", params.InitialDelay, params.MaxDelay)
	}
	if params.Workers < 1 {
		params.Workers = 1
	}

	return &Agent{
		params:    params,
		backoff:   &Backoff{Initial: params.InitialDelay, Max: params.MaxDelay},
		reconnect: make(chan struct{}, 1),
		log:       params.Log,
	}, nil
}

// Run connects and serves until ctx is cancelled, then disconnects and
// closes the session.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	handlers := pool.New().WithMaxGoroutines(a.params.Workers)

	// connection keeper
	g.Go(func() error {
		a.connectLoop(gctx)
		return nil
	})

	// shutdown
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("stopping")

		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := a.params.Session.Disconnect(dctx); err != nil && !errors.Is(err, mqsession.ErrInvalidTransition) {
			a.log.Warn().Err(err).Msg("disconnect failed")
		}
		return a.params.Session.Close()
	})

	// event loop, ends when the session is closed
	g.Go(func() error {
		defer handlers.Wait()
		for ev := range a.params.Session.Events() {
			a.handleEvent(gctx, handlers, ev)
		}
		return nil
	})

	return g.Wait()
}

func (a *Agent) handleEvent(ctx context.Context, handlers *pool.Pool, ev mqsession.Event) {
	switch ev := ev.(type) {
	case mqsession.Connected:
		a.log.Info().Bool("session_present", ev.SessionPresent).Msg("mqtt connected")
		a.params.Light.Lit()
		a.backoff.Reset()
		a.Publish(a.params.StatusTopic, OnlinePayload, mqsession.AtLeastOnce, false)
		a.Subscribe(a.params.CommandTopic, a.params.CommandQoS)

	case mqsession.Disconnected:
		a.log.Info().AnErr("cause", ev.Err).Msg("mqtt disconnected")
		a.params.Light.Blink()
		if ctx.Err() == nil {
			select {
			case a.reconnect <- struct{}{}:
			default:
			}
		}

	case mqsession.Error:
		if ev.ID == 0 {
			a.log.Error().Err(ev.Err).Msg("mqtt connection error")
			a.params.Light.Off()
			return
		}
		a.log.Warn().Uint64("id", ev.ID).Err(ev.Err).Msg("mqtt request failed")

	case mqsession.Subscribed:
		a.log.Info().Uint64("id", ev.ID).Str("filter", ev.Filter).Stringer("granted_qos", ev.GrantedQoS).Msg("subscribed")

	case mqsession.Unsubscribed:
		a.log.Info().Uint64("id", ev.ID).Str("filter", ev.Filter).Msg("unsubscribed")

	case mqsession.Published:
		a.log.Info().Uint64("id", ev.ID).Str("topic", ev.Topic).Msg("published")

	case mqsession.MessageReceived:
		a.log.Info().Str("topic", ev.Topic).Bytes("payload", ev.Payload).Msg("command received")
		if a.params.Handler == nil {
			return
		}
		handlers.Go(func() {
			if err := a.params.Handler(ctx, ev.Topic, ev.Payload); err != nil {
				a.log.Warn().Err(err).Str("topic", ev.Topic).Msg("command failed")
			}
		})
	}
}

// connectLoop connects once, then again after every Disconnected event,
// waiting out the backoff in between.
func (a *Agent) connectLoop(ctx context.Context) {
	a.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.reconnect:
		}

		delay := a.backoff.Next()
		a.log.Info().Dur("delay", delay).Msg("reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		a.connect(ctx)
	}
}

func (a *Agent) connect(ctx context.Context) {
	// A failed attempt also arrives as Disconnected, which schedules the retry.
	if err := a.params.Session.Connect(ctx); err != nil {
		a.log.Warn().Err(err).Msg("connect failed")
	}
}

// Subscribe forwards to the session and logs the request. Requests the
// session rejects outright are logged as warnings.
func (a *Agent) Subscribe(topic string, qos mqsession.QoS) *mqsession.Handle {
	h := a.params.Session.Subscribe(topic, qos)
	a.log.Info().Uint64("id", h.ID()).Str("topic", topic).Stringer("qos", qos).Msg("subscribing")
	a.checkRejected(h, "subscribe", topic)
	return h
}

// Unsubscribe forwards to the session and logs the request.
func (a *Agent) Unsubscribe(topic string) *mqsession.Handle {
	h := a.params.Session.Unsubscribe(topic)
	a.log.Info().Uint64("id", h.ID()).Str("topic", topic).Msg("unsubscribing")
	a.checkRejected(h, "unsubscribe", topic)
	return h
}

// Publish forwards to the session and logs the request.
func (a *Agent) Publish(topic string, data []byte, qos mqsession.QoS, retain bool) *mqsession.Handle {
	h := a.params.Session.Publish(topic, data, mqsession.WithQoS(qos), mqsession.WithRetain(retain))
	a.log.Info().Uint64("id", h.ID()).Str("topic", topic).Bytes("data", data).Msg("publishing")
	a.checkRejected(h, "publish", topic)
	return h
}

// checkRejected logs requests that completed before reaching the broker.
// Validation failures produce no session event, so this is the only trace.
func (a *Agent) checkRejected(h *mqsession.Handle, op, topic string) {
	if err := h.Err(); err != nil {
		a.log.Warn().Uint64("id", h.ID()).Str("op", op).Str("topic", topic).Err(err).Msg("request rejected")
	}
}
