package store

import (
	"context"
	"sort"
	"sync"

	"attendance/internal/attendance/models"
)

type dayKey struct {
	value string
	date  string
}

// InMemoryLedger keeps records in process memory. Both uniqueness checks and
// both index writes happen under one lock.
type InMemoryLedger struct {
	mu         sync.RWMutex
	byIdentity map[dayKey]*models.AttendanceRecord
	byDevice   map[dayKey]*models.AttendanceRecord
	byDate     map[string][]*models.AttendanceRecord
}

func NewInMemory() *InMemoryLedger {
	return &InMemoryLedger{
		byIdentity: make(map[dayKey]*models.AttendanceRecord),
		byDevice:   make(map[dayKey]*models.AttendanceRecord),
		byDate:     make(map[string][]*models.AttendanceRecord),
	}
}

func (l *InMemoryLedger) EnsureSchema(context.Context) error { return nil }

func (l *InMemoryLedger) Close() error { return nil }

func (l *InMemoryLedger) Record(ctx context.Context, rec *models.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := prepare(rec)
	if err != nil {
		return err
	}
	idKey := dayKey{value: r.Identity, date: r.Date}
	devKey := dayKey{value: r.DeviceID, date: r.Date}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byIdentity[idKey]; ok {
		return conflictErr(ConflictIdentity, r)
	}
	if _, ok := l.byDevice[devKey]; ok {
		return conflictErr(ConflictDevice, r)
	}
	l.byIdentity[idKey] = r
	l.byDevice[devKey] = r
	l.byDate[r.Date] = append(l.byDate[r.Date], r)
	return nil
}

func (l *InMemoryLedger) ListByDate(ctx context.Context, date string) ([]*models.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	records := l.byDate[date]
	out := make([]*models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}
