//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"attendance/internal/attendance/store"
	"attendance/pkg/platform/sentinel"
	"attendance/pkg/testutil/containers"
)

type RedisLedgerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	ledger *store.RedisLedger
}

func TestRedisLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLedgerSuite))
}

func (s *RedisLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.ledger = store.NewRedis(s.redis.Client)
}

func (s *RedisLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.FlushAll(ctx))
	s.Require().NoError(s.ledger.EnsureSchema(ctx))
}

func (s *RedisLedgerSuite) TestRecordAndList() {
	ctx := context.Background()
	rec := record("abc123", "dev-1")
	s.Require().NoError(s.ledger.Record(ctx, rec))

	got, err := s.ledger.ListByDate(ctx, "2026-03-02")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("ABC123", got[0].Identity)
	s.Equal(rec.ID, got[0].ID)

	keys, err := s.redis.Keys(ctx, "attendance:{2026-03-02}:*")
	s.Require().NoError(err)
	s.Len(keys, 3)
}

func (s *RedisLedgerSuite) TestDuplicateIdentityLeavesNoPartialWrite() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Record(ctx, record("ABC123", "dev-1")))

	err := s.ledger.Record(ctx, record(" abc123", "dev-2"))
	s.ErrorIs(err, sentinel.ErrConflict)

	// dev-2 must still be free.
	s.NoError(s.ledger.Record(ctx, record("XYZ999", "dev-2")))
}

func (s *RedisLedgerSuite) TestDuplicateDevice() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Record(ctx, record("ABC123", "dev-1")))
	s.ErrorIs(s.ledger.Record(ctx, record("XYZ999", "dev-1")), sentinel.ErrConflict)

	got, err := s.ledger.ListByDate(ctx, "2026-03-02")
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *RedisLedgerSuite) TestConcurrentSameIdentity() {
	ctx := context.Background()
	const goroutines = 50

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ledger.Record(ctx, record("ABC123", fmt.Sprintf("dev-%d", i)))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}
