package storage

import (
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence mirror. The in-process tracker is authoritative; these keys are
// a best-effort write-through for out-of-process readers (the one-way
// notification channel reads them to decide between push and toast).
//
// Keys: chat:presence:<user> with a TTL, plus a chat:online set for cheap
// membership listing.

const (
	presenceTTL  = 2 * time.Minute
	onlineSetKey = "chat:online"
	presencePref = "chat:presence:"
)

func presenceKey(user string) string { return presencePref + user }

// PresenceOnline marks the user online and renews the TTL.
func PresenceOnline(user string) error {
	if rdb == nil {
		return nil
	}
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, presenceKey(user), "1", presenceTTL)
	pipe.SAdd(ctx, onlineSetKey, user)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence online")
}

// PresenceOffline removes the mark.
func PresenceOffline(user string) error {
	if rdb == nil {
		return nil
	}
	pipe := rdb.TxPipeline()
	pipe.Del(ctx, presenceKey(user))
	pipe.SRem(ctx, onlineSetKey, user)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence offline")
}

// PresenceLookup checks whether the user is marked online.
func PresenceLookup(user string) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	_, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "presence lookup")
	}
	return true, nil
}
