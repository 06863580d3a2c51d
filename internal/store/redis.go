// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisDocPrefix  = "judgement:doc:"
	redisChanPrefix = "judgement:ch:"

	// Lobby documents outlive their last writer by this much, so an
	// abandoned lobby cleans itself up without a janitor process.
	redisDocTTL = 24 * time.Hour
)

// RedisStore is the Redis-backed Store. Documents are sharded per lobby:
// everything under lobbies/{code} lives in one JSON value at
// judgement:doc:lobbies/{code}, and every mutation republishes the whole
// lobby document on judgement:ch:lobbies/{code} for watchers.
//
// Merge-updates are read-modify-write without a transaction. That is
// deliberate: the store contract is last-write-wins with no conflict
// detection, and the designated-writer convention above this layer keeps
// two clients from racing on the same fields.
type RedisStore struct {
	rdb *redis.Client
	log *logrus.Logger

	mu sync.Mutex
	// one pubsub subscription per lobby doc, shared by its watchers
	subs map[string]*redisSub
}

type redisSub struct {
	pubsub   *redis.PubSub
	watchers map[int64]*redisWatcher
	nextID   int64
	done     chan struct{}
}

type redisWatcher struct {
	path string
	rest []string
	fn   func(Snapshot)
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(rdb *redis.Client, log *logrus.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, log: log, subs: map[string]*redisSub{}}
}

// ConnectRedis dials Redis and pings it so a bad address fails at startup
// rather than on the first write.
func ConnectRedis(ctx context.Context, addr string, db int, log *logrus.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewRedisStore(rdb, log), nil
}

// shard splits a path into the lobby-document root and the inner path.
// The Redis backend requires paths at least two segments deep.
func shard(path string) (root string, rest []string, err error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", nil, err
	}
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("%w: %q is above lobby-document granularity", ErrInvalidPath, path)
	}
	return strings.Join(segs[:2], "/"), segs[2:], nil
}

func (s *RedisStore) loadDoc(ctx context.Context, root string) (map[string]any, error) {
	raw, err := s.rdb.Get(ctx, redisDocPrefix+root).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get %s: %w", root, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("store: corrupt document at %s: %w", root, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// mutate loads the lobby document, applies fn, stores the result and
// publishes it to watchers.
func (s *RedisStore) mutate(ctx context.Context, root string, fn func(doc map[string]any)) error {
	doc, err := s.loadDoc(ctx, root)
	if err != nil {
		return err
	}
	fn(doc)
	prune(doc)

	var payload []byte
	if len(doc) == 0 {
		if err := s.rdb.Del(ctx, redisDocPrefix+root).Err(); err != nil {
			return fmt.Errorf("store: redis del %s: %w", root, err)
		}
		payload = []byte("null")
	} else {
		payload, err = json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("store: encode document %s: %w", root, err)
		}
		if err := s.rdb.Set(ctx, redisDocPrefix+root, payload, redisDocTTL).Err(); err != nil {
			return fmt.Errorf("store: redis set %s: %w", root, err)
		}
	}
	if err := s.rdb.Publish(ctx, redisChanPrefix+root, payload).Err(); err != nil {
		return fmt.Errorf("store: redis publish %s: %w", root, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, path string) (any, error) {
	root, rest, err := shard(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.loadDoc(ctx, root)
	if err != nil {
		return nil, err
	}
	return lookup(doc, rest), nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	root, rest, err := shard(path)
	if err != nil {
		return err
	}
	plain, err := toPlain(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, root, func(doc map[string]any) {
		if len(rest) == 0 {
			for k := range doc {
				delete(doc, k)
			}
			if m, ok := prune(plain).(map[string]any); ok {
				for k, v := range m {
					doc[k] = v
				}
			}
			return
		}
		assign(doc, rest, prune(plain))
	})
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	root, rest, err := shard(path)
	if err != nil {
		return err
	}
	type write struct {
		segs  []string
		value any
	}
	writes := make([]write, 0, len(fields))
	for key, value := range fields {
		sub, err := splitPath(key)
		if err != nil {
			return err
		}
		plain, err := toPlain(value)
		if err != nil {
			return err
		}
		writes = append(writes, write{segs: append(append([]string{}, rest...), sub...), value: prune(plain)})
	}
	return s.mutate(ctx, root, func(doc map[string]any) {
		for _, w := range writes {
			assign(doc, w.segs, w.value)
		}
	})
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *RedisStore) Watch(path string, fn func(Snapshot)) (CancelFunc, error) {
	root, rest, err := shard(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sub, ok := s.subs[root]
	if !ok {
		pubsub := s.rdb.Subscribe(context.Background(), redisChanPrefix+root)
		sub = &redisSub{
			pubsub:   pubsub,
			watchers: map[int64]*redisWatcher{},
			done:     make(chan struct{}),
		}
		s.subs[root] = sub
		go s.pump(root, sub)
	}
	id := sub.nextID
	sub.nextID++
	w := &redisWatcher{path: path, rest: rest, fn: fn}
	sub.watchers[id] = w
	s.mu.Unlock()

	// Initial snapshot, same contract as the memory backend.
	initial, err := s.Get(context.Background(), path)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("initial snapshot load failed")
	}
	fn(Snapshot{Path: path, Value: initial})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.subs[root]
			if !ok || cur != sub {
				return
			}
			delete(cur.watchers, id)
			if len(cur.watchers) == 0 {
				close(cur.done)
				_ = cur.pubsub.Close()
				delete(s.subs, root)
			}
		})
	}
	return cancel, nil
}

// pump fans one lobby's pubsub messages out to its watchers.
func (s *RedisStore) pump(root string, sub *redisSub) {
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-sub.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var doc map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				s.log.WithError(err).WithField("doc", root).Warn("dropping corrupt change notification")
				continue
			}
			s.mu.Lock()
			watchers := make([]*redisWatcher, 0, len(sub.watchers))
			for _, w := range sub.watchers {
				watchers = append(watchers, w)
			}
			s.mu.Unlock()
			for _, w := range watchers {
				var value any
				if doc != nil {
					value = copyValue(lookup(doc, w.rest))
				}
				w.fn(Snapshot{Path: w.path, Value: value})
			}
		}
	}
}
