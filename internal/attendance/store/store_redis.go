package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"attendance/internal/attendance/models"
)

// recordScript runs atomically on the server: both day keys are checked and,
// only if both are free, both are claimed and the record is appended.
//
// KEYS[1] identity day key, KEYS[2] device day key, KEYS[3] day list
// ARGV[1] record JSON, ARGV[2] record id
var recordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 2
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[1])
return 0
`)

// RedisLedger stores records in Redis. Keys for one day share a hash tag so
// the script stays valid on a cluster.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client, prefix: "attendance"}
}

func (l *RedisLedger) identityKey(date, identity string) string {
	return fmt.Sprintf("%s:{%s}:identity:%s", l.prefix, date, identity)
}

func (l *RedisLedger) deviceKey(date, device string) string {
	return fmt.Sprintf("%s:{%s}:device:%s", l.prefix, date, device)
}

func (l *RedisLedger) dayKey(date string) string {
	return fmt.Sprintf("%s:{%s}:records", l.prefix, date)
}

// EnsureSchema loads the script so the first Record can use EVALSHA.
func (l *RedisLedger) EnsureSchema(ctx context.Context) error {
	if err := recordScript.Load(ctx, l.client).Err(); err != nil {
		return fmt.Errorf("load attendance script: %w", err)
	}
	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) Record(ctx context.Context, rec *models.AttendanceRecord) error {
	r, err := prepare(rec)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal attendance record: %w", err)
	}

	keys := []string{l.identityKey(r.Date, r.Identity), l.deviceKey(r.Date, r.DeviceID), l.dayKey(r.Date)}
	res, err := recordScript.Run(ctx, l.client, keys, payload, r.ID.String()).Int()
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	switch res {
	case 0:
		return nil
	case 1:
		return conflictErr(ConflictIdentity, r)
	case 2:
		return conflictErr(ConflictDevice, r)
	default:
		return fmt.Errorf("record attendance: unexpected script result %d", res)
	}
}

func (l *RedisLedger) ListByDate(ctx context.Context, date string) ([]*models.AttendanceRecord, error) {
	raw, err := l.client.LRange(ctx, l.dayKey(date), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	out := make([]*models.AttendanceRecord, 0, len(raw))
	for _, item := range raw {
		var r models.AttendanceRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode attendance record: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}
