package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisutil "wrap-render-server/modules/common/redis"
	"wrap-render-server/modules/design"
)

// QueueName - redis list carrying queued generate jobs
const QueueName = "render:queue"

// Job - one queued generate request
type Job struct {
	JobID      string                 `json:"jobId"`
	Request    design.GenerateRequest `json:"request"`
	EnqueuedAt time.Time              `json:"enqueuedAt"`
}

// Queue - FIFO of jobs. Dequeue returns redisutil.ErrQueueEmpty on timeout.
type Queue interface {
	Enqueue(ctx context.Context, job Job) (int64, error)
	Dequeue(ctx context.Context, timeout time.Duration) (Job, error)
}

// RedisQueue - LPUSH / BRPOP over one list
type RedisQueue struct {
	rdb  redis.Cmdable
	name string
}

func NewRedisQueue(rdb redis.Cmdable) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: QueueName}
}

// Enqueue pushes job and returns the queue length after the push.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) (int64, error) {
	if err := redisutil.PushJSON(ctx, q.rdb, q.name, job); err != nil {
		return 0, err
	}
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s length: %w", q.name, err)
	}
	return n, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	var job Job
	if err := redisutil.PopJSON(ctx, q.rdb, q.name, timeout, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
