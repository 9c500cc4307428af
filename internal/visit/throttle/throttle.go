// Package throttle rate-limits OTP issuance per member and purpose so a
// hammered endpoint cannot flood a member's phone. Fixed window in Redis;
// when Redis is not configured the throttle allows everything.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
)

const (
	defaultLimit  = 3
	defaultWindow = 10 * time.Minute
)

// Throttle counts issuances in a fixed window.
type Throttle struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// New builds a throttle. A nil client disables it.
func New(client *redis.Client) *Throttle {
	return &Throttle{client: client, limit: defaultLimit, window: defaultWindow}
}

// Allow consumes one issuance slot, erroring with CodeConflict when the
// member has exhausted the window. Redis outages fail open: OTP issuance is
// more important than the rate limit.
func (t *Throttle) Allow(ctx context.Context, memberID id.MemberID, purpose string) error {
	if t == nil || t.client == nil {
		return nil
	}
	key := fmt.Sprintf("otp_issue:%s:%s", memberID, purpose)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		t.client.Expire(ctx, key, t.window)
	}
	if count > int64(t.limit) {
		return dErrors.Newf(dErrors.CodeConflict,
			"too many codes requested; try again in %s", t.window)
	}
	return nil
}
