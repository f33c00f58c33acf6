// Package redislock provides a single-writer lease on a Redis key.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/oracle-resolver/internal/apperror"
)

const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("lock.redis_url"), apperror.WithCause(err))
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.External(apperror.CodeServiceUnavailable, "redis", err)
	}
	return rdb, nil
}

// Locker hands out leases.
type Locker struct {
	rdb      redis.UniversalClient
	unlockSc *redis.Script
	extendSc *redis.Script
}

// New creates a Locker on rdb.
func New(rdb redis.UniversalClient) *Locker {
	return &Locker{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	locker *Locker
	key    string
	token  string
	ttl    time.Duration

	once sync.Once
}

// Acquire takes key for ttl. It returns LockHeld when another holder has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperror.External(apperror.CodeServiceUnavailable, "redis acquire "+key, err)
	}
	if !ok {
		return nil, apperror.New(apperror.CodeLockHeld, apperror.WithContext(key))
	}
	return &Lease{locker: l, key: key, token: token, ttl: ttl}, nil
}

// Token identifies this holder.
func (ls *Lease) Token() string { return ls.token }

// Refresh extends the lease. It returns LockHeld if the lease was lost.
func (ls *Lease) Refresh(ctx context.Context) error {
	n, err := ls.locker.extendSc.Run(ctx, ls.locker.rdb, []string{ls.key}, ls.token, ls.ttl.Milliseconds()).Int()
	if err != nil {
		return apperror.External(apperror.CodeServiceUnavailable, "redis refresh "+ls.key, err)
	}
	if n == 0 {
		return apperror.New(apperror.CodeLockHeld, apperror.WithContext(ls.key+": lease lost"))
	}
	return nil
}

// KeepAlive refreshes every ttl/3 until ctx ends. onLost is called once if
// the lease cannot be kept, after which KeepAlive returns.
func (ls *Lease) KeepAlive(ctx context.Context, onLost func(error)) {
	interval := ls.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ls.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if apperror.HasCode(err, apperror.CodeLockHeld) {
					onLost(err)
					return
				}
				// Transient errors are retried on the next tick while the TTL holds.
			}
		}
	}
}

// Release deletes the key if this lease still owns it.
func (ls *Lease) Release() {
	ls.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ls.locker.unlockSc.Run(ctx, ls.locker.rdb, []string{ls.key}, ls.token).Err()
	})
}
