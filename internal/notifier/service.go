package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hwbot/internal/homework"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

// Service is the chat sink of the poll loop. It is safe for concurrent use.
type Service struct {
	log     logx.Logger
	sender  kit.Sender
	to      kit.ChatTarget
	timeout time.Duration
	limiter *rate.Limiter

	mu    sync.Mutex
	stats Stats
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := max(1, cfg.RatePerSec)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		log:     log,
		sender:  sender,
		to:      kit.ChatTarget{Chat: cfg.Chat, ThreadID: cfg.ThreadID},
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Send delivers text and reports whether it was accepted by the chat API.
// Failures are logged as notify errors and swallowed.
func (s *Service) Send(ctx context.Context, text string) bool {
	err := s.send(ctx, text)

	s.mu.Lock()
	s.stats.LastAt = time.Now()
	if err != nil {
		s.stats.Failed++
	} else {
		s.stats.Sent++
	}
	s.mu.Unlock()

	if err != nil {
		nerr := &homework.Error{Kind: homework.KindNotify, Op: "send", Err: err}
		s.log.Error("message not delivered", logx.Err(nerr), logx.Int("len", len(text)))
		return false
	}
	s.log.Debug("message delivered", logx.String("chat", s.to.Chat))
	return true
}

func (s *Service) send(ctx context.Context, text string) (err error) {
	if s.sender == nil {
		return errNoSender
	}
	// A panicking transport must not take the poll loop down.
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = s.sender.SendText(ctx, s.to, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
