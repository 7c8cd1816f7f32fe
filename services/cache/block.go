package cache

import (
	"errors"
	"strconv"
	"time"

	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

const blockKeyPrefix = "divar:block:"

// HostBlocker remembers hosts that answered with a rate limit so further
// requests can be skipped until the block expires
type HostBlocker struct {
	cache    CacheService
	duration time.Duration
	now      func() time.Time
}

// NewHostBlocker creates a blocker storing its state in cache
func NewHostBlocker(cache CacheService, duration time.Duration) *HostBlocker {
	return &HostBlocker{
		cache:    cache,
		duration: duration,
		now:      time.Now,
	}
}

// Block marks host as rate limited for the configured duration
func (b *HostBlocker) Block(host string) error {
	if b == nil || b.duration <= 0 {
		return nil
	}

	until := b.now().Add(b.duration).Unix()
	if err := b.cache.Set(blockKeyPrefix+host, []byte(strconv.FormatInt(until, 10)), b.duration); err != nil {
		return scrapeerrors.NewCache("block", "failed to store rate limit block for "+host, err)
	}
	logger.ForCache().Warn().Str("host", host).Dur("duration", b.duration).Msg("Host blocked after rate limiting")
	return nil
}

// Remaining returns how long host stays blocked, zero when it is not
func (b *HostBlocker) Remaining(host string) time.Duration {
	if b == nil {
		return 0
	}

	value, err := b.cache.Get(blockKeyPrefix + host)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.ForCache().Debug().Err(err).Str("host", host).Msg("Failed to read rate limit block")
		}
		return 0
	}

	until, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0
	}

	remaining := time.Unix(until, 0).Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
