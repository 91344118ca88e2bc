package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
	ctx    context.Context
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.ctx = context.Background()

	store, err := NewRedisStore(&RedisConfig{Client: s.client})
	s.Require().NoError(err)
	store.retryBackoff = 10 * time.Millisecond
	s.store = store
}

func (s *RedisStoreTestSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.mr != nil {
		s.mr.Close()
	}
}

func (s *RedisStoreTestSuite) waitForHistory(classroom string, want int) []*types.Event {
	var events []*types.Event
	s.Require().Eventually(func() bool {
		var err error
		events, err = s.store.LoadHistory(s.ctx, classroom)
		s.Require().NoError(err)
		return len(events) >= want
	}, 2*time.Second, 10*time.Millisecond)
	return events
}

func (s *RedisStoreTestSuite) TestNewRedisStoreValidation() {
	_, err := NewRedisStore(nil)
	s.Error(err)

	_, err = NewRedisStore(&RedisConfig{})
	s.Error(err)
}

func (s *RedisStoreTestSuite) TestClassDirectory() {
	exists, err := s.store.Exists(s.ctx, "math")
	s.NoError(err)
	s.False(exists)

	s.NoError(s.store.CreateClass(s.ctx, "math"))
	s.NoError(s.store.CreateClass(s.ctx, "algebra"))

	exists, err = s.store.Exists(s.ctx, "math")
	s.NoError(err)
	s.True(exists)

	err = s.store.CreateClass(s.ctx, "math")
	s.ErrorIs(err, interfaces.ErrClassExists)

	names, err := s.store.ListClasses(s.ctx)
	s.NoError(err)
	s.Equal([]string{"algebra", "math"}, names)
}

func (s *RedisStoreTestSuite) TestAppendAndLoad() {
	for _, msg := range []string{"first", "second", "third"} {
		err := s.store.Append(s.ctx, &types.Event{
			ID:        msg,
			Classroom: "math",
			Username:  "alice",
			Role:      types.RoleStudent,
			Kind:      types.KindChat,
			Message:   msg,
			Timestamp: time.Now().UTC(),
		})
		s.Require().NoError(err)
	}

	events := s.waitForHistory("math", 3)
	s.Equal("first", events[0].Message)
	s.Equal("second", events[1].Message)
	s.Equal("third", events[2].Message)
	s.Equal("alice", events[0].Username)
	s.Equal(types.KindChat, events[0].Kind)

	other, err := s.store.LoadHistory(s.ctx, "physics")
	s.NoError(err)
	s.Empty(other)
}

func (s *RedisStoreTestSuite) TestAppendFileEvent() {
	err := s.store.Append(s.ctx, &types.Event{
		ID:        "f1",
		Classroom: "math",
		Username:  types.SystemUsername,
		Role:      types.RoleSystem,
		Kind:      types.KindFileUploaded,
		Message:   "smith uploaded notes.pdf",
		File:      &types.FileInfo{ID: "file-9", Name: "notes.pdf"},
		Timestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)

	events := s.waitForHistory("math", 1)
	s.Require().NotNil(events[0].File)
	s.Equal("file-9", events[0].File.ID)
	s.Equal("notes.pdf", events[0].File.Name)
}

func (s *RedisStoreTestSuite) TestAppendAfterClose() {
	s.Require().NoError(s.store.Close())

	err := s.store.Append(s.ctx, &types.Event{ID: "late", Classroom: "math"})
	s.ErrorIs(err, interfaces.ErrStoreClosed)

	// Close is idempotent
	s.NoError(s.store.Close())
}

func (s *RedisStoreTestSuite) TestHealthCheck() {
	s.NoError(s.store.HealthCheck(s.ctx))

	s.mr.Close()
	s.Error(s.store.HealthCheck(s.ctx))
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}
