package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ErrLocked means another holder owns the lock.
var ErrLocked = errors.New("lock already held")

// Locker hands out a non-blocking exclusive lock. The returned release func
// must be called exactly once.
type Locker interface {
	TryLock(ctx context.Context) (release func(), err error)
}

// Local serializes holders inside one process.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

const (
	defaultTTL = 15 * time.Minute
)

// releaseScript deletes the key only if it still carries our token, so an
// expired holder cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis serializes holders across processes sharing one redis. While held,
// the key's TTL is renewed every ttl/3 so long passes keep it.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, name string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{
		client: client,
		key:    "lotero:lock:" + name,
		ttl:    ttl,
	}
}

// NewRedisFromURL parses a redis:// URL and builds a Redis lock on it.
func NewRedisFromURL(url, name string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opt), name, ttl), nil
}

func (r *Redis) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
				log.Printf("failed to release lock %s: %v", r.key, err)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := extendScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Printf("failed to extend lock %s: %v", r.key, err)
				continue
			}
			if n == 0 {
				log.WithField("key", r.key).Warn("lock lost before release")
				return
			}
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
