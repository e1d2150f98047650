package linking

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync"

	"gigearn-link/internal/models"
	"gigearn-link/internal/util"
)

type subscription struct {
	attempt *Attempt
	timer   *time.Timer
	claimed atomic.Bool
}

// claim hands the subscription to exactly one of dispatch, timeout or cancel.
func (s *subscription) claim() bool {
	if !s.claimed.CompareAndSwap(false, true) {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	return true
}

// Listener routes inbound callback URLs to the link attempt waiting for them.
// There is at most one subscription per user and provider.
type Listener struct {
	callbackBase string
	subs         *xsync.MapOf[string, *subscription]
	// serializes writes so a slot is only removed by its owner
	mu sync.Mutex
}

func NewListener(callbackBase string) *Listener {
	return &Listener{
		callbackBase: callbackBase,
		subs:         xsync.NewMapOf[*subscription](),
	}
}

func subKey(userID string, provider models.Provider) string {
	return userID + "/" + provider.String()
}

// Subscribe registers a for its provider until ttl elapses, after which
// onExpire runs with the attempt. A live subscription for the same provider
// is replaced and its attempt resolved with ErrAttemptExpired.
func (l *Listener) Subscribe(a *Attempt, ttl time.Duration, onExpire func(*Attempt)) {
	key := subKey(a.UserID, a.Provider)
	sub := &subscription{attempt: a}

	sub.timer = time.AfterFunc(ttl, func() {
		// the timer has fired; nothing to stop
		if !sub.claimed.CompareAndSwap(false, true) {
			return
		}
		l.drop(key, sub)
		util.LogInfo("link attempt expired", "provider", a.Provider.String(), "userID", a.UserID, "attemptID", a.ID)
		if onExpire != nil {
			onExpire(a)
		}
	})

	l.mu.Lock()
	prev, replaced := l.subs.Load(key)
	l.subs.Store(key, sub)
	l.mu.Unlock()

	if replaced && prev.claim() {
		prev.attempt.resolve(nil, ErrAttemptExpired)
	}
	if sub.claimed.Load() {
		// expired before it was stored
		l.drop(key, sub)
	}
}

// Dispatch hands a callback URL to the attempt subscribed for it and ends
// that subscription. URLs outside the callback path, or for which nothing is
// subscribed, are ignored and reported as not delivered.
func (l *Listener) Dispatch(userID, raw string) (*Attempt, CallbackParams, bool) {
	if !matchesCallback(l.callbackBase, raw) {
		util.LogWarn("callback ignored: not a callback url", "userID", userID)
		return nil, CallbackParams{}, false
	}
	params, err := ParseCallbackParams(raw)
	if err != nil {
		util.LogWarn("callback ignored: unparsable", "userID", userID, "error", err.Error())
		return nil, CallbackParams{}, false
	}

	key := subKey(userID, params.Provider)
	sub, ok := l.subs.Load(key)
	if !ok || !sub.claim() {
		util.LogInfo("callback ignored: no pending attempt", "userID", userID, "provider", params.Provider.String())
		return nil, params, false
	}
	l.drop(key, sub)

	return sub.attempt, params, true
}

// Cancel ends the subscription for provider without delivering anything.
func (l *Listener) Cancel(userID string, provider models.Provider) (*Attempt, bool) {
	key := subKey(userID, provider)
	sub, ok := l.subs.Load(key)
	if !ok || !sub.claim() {
		return nil, false
	}
	l.drop(key, sub)
	return sub.attempt, true
}

// Pending reports whether an attempt is subscribed for provider.
func (l *Listener) Pending(userID string, provider models.Provider) bool {
	sub, ok := l.subs.Load(subKey(userID, provider))
	return ok && !sub.claimed.Load()
}

func (l *Listener) Len() int {
	return l.subs.Size()
}

// drop removes key only while it still maps to sub.
func (l *Listener) drop(key string, sub *subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.subs.Load(key); ok && cur == sub {
		l.subs.Delete(key)
	}
}
