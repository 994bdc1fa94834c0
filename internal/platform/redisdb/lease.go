package redisdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/archiletras/fichas-backend/internal/platform/envutil"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

// LeaseLocker hands out short-lived per-ficha leases so two concurrent
// lifecycle transitions on the same card do not interleave. When Redis is not
// configured the orchestrator falls back to conditional status updates alone.
type LeaseLocker interface {
	Acquire(ctx context.Context, fichaID uuid.UUID) (release func(), err error)
	Close() error
}

type leaseLocker struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// ErrLeaseHeld is returned when another transition currently holds the lease.
var ErrLeaseHeld = fmt.Errorf("ficha lease already held")

func NewLeaseLocker(log *logger.Logger) (LeaseLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttl := envutil.Seconds("LOCK_TTL_SECONDS", 30*time.Second)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &leaseLocker{
		log: log.With("service", "FichaLeaseLocker"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

// releaseScript deletes the lease only if this holder still owns it, so an
// expired lease taken over by another transition is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

func (l *leaseLocker) Acquire(ctx context.Context, fichaID uuid.UUID) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("lease locker not initialized")
	}
	if fichaID == uuid.Nil {
		return nil, fmt.Errorf("missing ficha id")
	}

	key := "ficha:lease:" + fichaID.String()
	holder := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lease acquire: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	release := func() {
		// Release runs on a fresh context: the request context may already be
		// cancelled by the time the transition unwinds.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, holder).Err(); err != nil && l.log != nil {
			l.log.Warn("lease release failed", "ficha_id", fichaID.String(), "error", err)
		}
	}
	return release, nil
}

func (l *leaseLocker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
