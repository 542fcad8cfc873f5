package repository

import (
	"sync"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
)

// connectionTracker : машина состояний подключения к Redis.
// Одновременно выполняется не больше одной попытки переподключения.
type connectionTracker struct {
	mu sync.Mutex

	policy config.ReconnectPolicy
	now    func() time.Time

	state         model.ConnState
	attempt       int
	probing       bool
	nextAttemptAt time.Time
	lastProbeAt   time.Time
	lastError     string
}

func newConnectionTracker(policy config.ReconnectPolicy, now func() time.Time) *connectionTracker {
	if now == nil {
		now = time.Now
	}
	return &connectionTracker{
		policy: policy,
		now:    now,
		state:  model.ConnDisconnected,
	}
}

// connected : быстрый путь для команд кэша
func (t *connectionTracker) connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == model.ConnConnected
}

// beginAttempt : резервирует попытку подключения. force пропускает ожидание backoff и
// probe_interval (используется health-проверкой), но не отменяет запрет параллельных попыток.
func (t *connectionTracker) beginAttempt(force bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == model.ConnClosed {
		return model.ErrCacheClosed
	}
	if t.probing {
		return model.ErrCacheProbeInFlight
	}

	now := t.now()
	switch t.state {
	case model.ConnDegraded:
		if !force && now.Sub(t.lastProbeAt) < t.policy.ProbeInterval {
			return errNotDue
		}
	case model.ConnDisconnected, model.ConnConnecting:
		if !force && now.Before(t.nextAttemptAt) {
			return errNotDue
		}
		t.state = model.ConnConnecting
		t.attempt++
	}

	t.probing = true
	t.lastProbeAt = now
	return nil
}

func (t *connectionTracker) succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == model.ConnClosed {
		t.probing = false
		return
	}
	t.state = model.ConnConnected
	t.attempt = 0
	t.probing = false
	t.lastError = ""
	t.nextAttemptAt = time.Time{}
}

// fail : завершает неудачную попытку. Исчерпав попытки, переходит в Degraded.
func (t *connectionTracker) fail(err error) model.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.probing = false
	if err != nil {
		t.lastError = err.Error()
	}

	switch t.state {
	case model.ConnConnecting:
		if t.attempt >= t.policy.MaxAttempts {
			t.state = model.ConnDegraded
		} else {
			t.nextAttemptAt = t.now().Add(t.backoff(t.attempt))
		}
	case model.ConnConnected:
		t.state = model.ConnDisconnected
		t.attempt = 0
		t.nextAttemptAt = t.now()
	}

	return t.state
}

// lost : команда упала на транспортной ошибке, соединение считается потерянным
func (t *connectionTracker) lost(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != model.ConnConnected {
		return
	}
	t.state = model.ConnDisconnected
	t.attempt = 0
	t.nextAttemptAt = t.now()
	if err != nil {
		t.lastError = err.Error()
	}
}

func (t *connectionTracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.ConnClosed
}

// delay : сколько ждать до следующей попытки при первичном подключении
func (t *connectionTracker) delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.nextAttemptAt.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

// backoff : base * 2^(n-1), не больше MaxBackoff
func (t *connectionTracker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := t.policy.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= t.policy.MaxBackoff {
			return t.policy.MaxBackoff
		}
	}
	if d > t.policy.MaxBackoff {
		return t.policy.MaxBackoff
	}
	return d
}

func (t *connectionTracker) snapshot() model.CacheStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.CacheStatus{
		Configured:  true,
		State:       t.state,
		Attempt:     t.attempt,
		LastProbeAt: t.lastProbeAt,
		LastError:   t.lastError,
	}
}
