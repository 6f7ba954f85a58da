package sweeper

import (
	"context"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "hotelbooking:sweeper:auto_checkout"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Scheduler runs the sweep on a ticker. With a redis client only one instance sweeps per tick.
type Scheduler struct {
	svc      *Service
	rdb      *redis.Client
	interval time.Duration
	log      logger.ILogger
}

func NewScheduler(svc *Service, rdb *redis.Client, interval time.Duration, log logger.ILogger) *Scheduler {
	return &Scheduler{svc: svc, rdb: rdb, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(module, "Auto-checkout scheduler started", map[string]interface{}{
		"interval":    s.interval.String(),
		"distributed": s.rdb != nil,
	})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.RunOnce(ctx); err != nil {
				s.log.Error(module, "Scheduled sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// RunOnce sweeps if this instance wins the lock. ran is false when another instance holds it.
func (s *Scheduler) RunOnce(ctx context.Context) (res *Result, ran bool, err error) {
	token, ok, err := s.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.log.Debug(module, "Sweep lock held elsewhere", nil)
		return nil, false, nil
	}
	defer s.release(token)

	res, err = s.svc.Process(ctx, domain.SystemActor())
	return res, true, err
}

func (s *Scheduler) acquire(ctx context.Context) (string, bool, error) {
	if s.rdb == nil {
		return "", true, nil
	}
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, lockKey, token, s.lockTTL()).Result()
	return token, ok, err
}

func (s *Scheduler) release(token string) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, s.rdb, []string{lockKey}, token).Err(); err != nil {
		s.log.Warn(module, "Failed to release sweep lock", map[string]interface{}{"error": err.Error()})
	}
}

// The lock outlives a slow sweep but never a whole interval.
func (s *Scheduler) lockTTL() time.Duration {
	ttl := s.interval / 2
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
