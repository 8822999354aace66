package ratelimit

import (
	"context"

	"github.com/openvenue/gatepass/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IntakeLimiter throttles the unauthenticated public endpoints per
// client address. Disabled when no redis address is configured.
type IntakeLimiter struct {
	bucket      *TokenBucket
	intakeRate  float64
	intakeBurst int
	verifyRate  float64
	verifyBurst int
	enabled     bool
}

func NewIntakeLimiter(cfg config.Config, log *zap.Logger) *IntakeLimiter {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		return &IntakeLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	log.Named("ratelimit").Info("intake rate limiting enabled",
		zap.Float64("intake_rate", cfg.RateLimit.IntakeRate),
		zap.Int("intake_burst", cfg.RateLimit.IntakeBurst),
	)

	return &IntakeLimiter{
		bucket:      NewTokenBucket(client),
		intakeRate:  cfg.RateLimit.IntakeRate,
		intakeBurst: cfg.RateLimit.IntakeBurst,
		verifyRate:  cfg.RateLimit.VerifyRate,
		verifyBurst: cfg.RateLimit.VerifyBurst,
		enabled:     true,
	}
}

func (l *IntakeLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *IntakeLimiter) AllowIntake(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, "gatepass:intake:"+clientIP, l.intakeRate, l.intakeBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *IntakeLimiter) AllowVerify(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, "gatepass:verify:"+clientIP, l.verifyRate, l.verifyBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
