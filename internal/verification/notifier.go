package verification

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier wakes rendezvous waiters when a result is published.
// Notifications are hints only; the ledger stays the source of truth.
type Notifier interface {
	Subscribe(ctx context.Context, key string) (Subscription, error)
	Notify(ctx context.Context, key string) error
}

// Subscription delivers at most one pending wake-up at a time.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

// ResultKey names the notification channel for one participant's result on one call.
func ResultKey(callID int64, participantID string) string {
	return fmt.Sprintf("%d:%s", callID, participantID)
}

// MemoryNotifier fans out in-process.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: map[string]map[*memorySub]struct{}{}}
}

type memorySub struct {
	n    *MemoryNotifier
	key  string
	ch   chan struct{}
	once sync.Once
}

func (s *memorySub) C() <-chan struct{} { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.n.mu.Lock()
		defer s.n.mu.Unlock()
		set := s.n.subs[s.key]
		delete(set, s)
		if len(set) == 0 {
			delete(s.n.subs, s.key)
		}
	})
	return nil
}

func (n *MemoryNotifier) Subscribe(ctx context.Context, key string) (Subscription, error) {
	s := &memorySub{n: n, key: key, ch: make(chan struct{}, 1)}
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[key]
	if !ok {
		set = map[*memorySub]struct{}{}
		n.subs[key] = set
	}
	set[s] = struct{}{}
	return s, nil
}

func (n *MemoryNotifier) Notify(ctx context.Context, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs[key] {
		wake(s.ch)
	}
	return nil
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RedisNotifier uses Redis pub/sub so legs handled by different replicas wake each other.
type RedisNotifier struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisNotifier(rdb *redis.Client, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = "voiceguard:result:"
	}
	return &RedisNotifier{rdb: rdb, prefix: prefix}
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *redisSub) C() <-chan struct{} { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
		<-s.done
	})
	return err
}

// Subscribe returns once Redis has confirmed the subscription, so a publish made
// after it returns cannot be missed.
func (n *RedisNotifier) Subscribe(ctx context.Context, key string) (Subscription, error) {
	ps := n.rdb.Subscribe(ctx, n.prefix+key)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	s := &redisSub{ps: ps, ch: make(chan struct{}, 1), done: make(chan struct{})}
	msgs := ps.Channel()
	go func() {
		defer close(s.done)
		for range msgs {
			wake(s.ch)
		}
	}()
	return s, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, key string) error {
	return n.rdb.Publish(ctx, n.prefix+key, "1").Err()
}
