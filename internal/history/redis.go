package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

const (
	// Key prefixes for Redis
	historyKeyPrefix = "history:"
	classSetKey      = "classes"
)

// RedisConfig holds configuration for the Redis-backed history store.
type RedisConfig struct {
	// Redis client
	Client *redis.Client
}

// RedisStore implements the durable history store and class directory on
// Redis: one list of JSON-encoded events per classroom, plus a set of
// registered classroom names. Appends go through a background writer
// with one retry, matching the delivery-first persistence contract.
type RedisStore struct {
	client *redis.Client

	writeChannel chan *types.Event
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex

	retryBackoff time.Duration
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	// Test connection
	if err := cfg.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &RedisStore{
		client:       cfg.Client,
		writeChannel: make(chan *types.Event, 256),
		shutdown:     make(chan struct{}),
		retryBackoff: 5 * time.Second,
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *RedisStore) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.writeChannel:
			s.push(event)

		case <-s.shutdown:
			for {
				select {
				case event := <-s.writeChannel:
					s.push(event)
				default:
					return
				}
			}
		}
	}
}

func (s *RedisStore) push(event *types.Event) {
	err := s.rpush(event)
	if err != nil {
		log.Printf("History append failed, retrying in %v: %v", s.retryBackoff, err)
		time.Sleep(s.retryBackoff)
		if err = s.rpush(event); err != nil {
			log.Printf("History append failed after retry: %v", err)
		}
	}
}

func (s *RedisStore) rpush(event *types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := historyKeyPrefix + event.Classroom
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Append enqueues event for persistence and returns immediately.
func (s *RedisStore) Append(ctx context.Context, event *types.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	select {
	case s.writeChannel <- event:
		return nil
	default:
		return interfaces.ErrAppendQueueFull
	}
}

// LoadHistory returns every stored event for classroom in append order.
func (s *RedisStore) LoadHistory(ctx context.Context, classroom string) ([]*types.Event, error) {
	values, err := s.client.LRange(ctx, historyKeyPrefix+classroom, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	events := make([]*types.Event, 0, len(values))
	for _, value := range values {
		var event types.Event
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

// Exists reports whether classroom is registered.
func (s *RedisStore) Exists(ctx context.Context, classroom string) (bool, error) {
	exists, err := s.client.SIsMember(ctx, classSetKey, classroom).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check classroom: %w", err)
	}
	return exists, nil
}

// CreateClass registers a classroom name. Fails with ErrClassExists if
// the name is taken.
func (s *RedisStore) CreateClass(ctx context.Context, classroom string) error {
	added, err := s.client.SAdd(ctx, classSetKey, classroom).Result()
	if err != nil {
		return fmt.Errorf("failed to register classroom: %w", err)
	}
	if added == 0 {
		return interfaces.ErrClassExists
	}
	return nil
}

// ListClasses returns every registered classroom name, sorted.
func (s *RedisStore) ListClasses(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, classSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list classrooms: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// HealthCheck validates Redis connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close drains pending appends and closes the client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	return s.client.Close()
}
