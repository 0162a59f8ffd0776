package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// mediaFailureMaxLen stream 近似上限，超出后丢弃最旧记录。
const mediaFailureMaxLen = 10000

// MediaFailureLog 把删除失败的 public id 追加到 Redis Stream，供运维脚本补删。
type MediaFailureLog struct {
	rdb    *rd.Client
	stream string
}

func NewMediaFailureLog(rdb *rd.Client, stream string) *MediaFailureLog {
	if stream == "" {
		stream = MediaFailureStream
	}
	return &MediaFailureLog{rdb: rdb, stream: stream}
}

// RecordMediaFailure 写入一条失败记录。
func (l *MediaFailureLog) RecordMediaFailure(ctx context.Context, publicID string, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return l.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: l.stream,
		MaxLen: mediaFailureMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"public_id": publicID,
			"reason":    reason,
			"at":        time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}

// PendingMediaFailures 最近 n 条失败记录，最新在前。
func (l *MediaFailureLog) PendingMediaFailures(ctx context.Context, n int64) ([]rd.XMessage, error) {
	return l.rdb.XRevRangeN(ctx, l.stream, "+", "-", n).Result()
}
