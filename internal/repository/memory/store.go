// Package memory is an in-process Store used by tests and by the
// "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
)

type Store struct {
	mu          sync.RWMutex
	doctors     map[uuid.UUID]*model.Doctor
	suspensions map[uuid.UUID]*model.Suspension
	blacklist   []*model.BlacklistEntry
	activity    []*model.ActivityLog
	outbox      []*model.OutboxEvent
	seq         map[uuid.UUID]int64
	nextSeq     int64

	locks *keyedMutex
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		doctors:     make(map[uuid.UUID]*model.Doctor),
		suspensions: make(map[uuid.UUID]*model.Suspension),
		seq:         make(map[uuid.UUID]int64),
		locks:       newKeyedMutex(),
	}
}

// WithDoctorLock runs fn while holding the doctor's mutex. Writes made
// through tx are staged and applied in one step when fn returns nil, so
// readers outside the lock never see uncommitted state.
func (s *Store) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx repository.DoctorTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(doctorID)
	defer unlock()

	tx := newMemTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) Doctors() repository.DoctorRepository         { return doctorRepo{s} }
func (s *Store) Suspensions() repository.SuspensionRepository { return suspensionRepo{s} }
func (s *Store) Blacklist() repository.BlacklistRepository    { return blacklistRepo{s} }
func (s *Store) Activity() repository.ActivityRepository      { return activityRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository          { return outboxRepo{s} }

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

// OutboxEvents returns a snapshot of every queued event.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, evt := range s.outbox {
		cp := *evt
		out = append(out, &cp)
	}
	return out
}

// nextSequence must be called with s.mu held.
func (s *Store) nextSequence(id uuid.UUID) {
	s.nextSeq++
	s.seq[id] = s.nextSeq
}

func (s *Store) countFor(doctorID uuid.UUID, activeOnly bool) int {
	n := 0
	for _, rec := range s.suspensions {
		if rec.DoctorID != doctorID {
			continue
		}
		if activeOnly && !rec.IsActive() {
			continue
		}
		n++
	}
	return n
}

func (s *Store) suspensionsFor(doctorID uuid.UUID) []*model.Suspension {
	var out []*model.Suspension
	for _, rec := range s.suspensions {
		if rec.DoctorID == doctorID {
			out = append(out, copySuspension(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out
}

type doctorRepo struct{ s *Store }

func (r doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.doctors {
		if strings.EqualFold(d.Email, doctor.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *doctor
	s.doctors[doctor.ID] = &cp
	s.nextSequence(doctor.ID)
	return nil
}

func (r doctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r doctorRepo) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.doctors {
		if strings.EqualFold(d.Email, email) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r doctorRepo) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		filter = &model.DoctorFilter{}
	}
	search := strings.ToLower(filter.Search)

	var matched []*model.Doctor
	for _, d := range s.doctors {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.Name), search) &&
			!strings.Contains(strings.ToLower(d.Email), search) {
			continue
		}
		cp := *d
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return s.seq[matched[i].ID] < s.seq[matched[j].ID] })

	total := int64(len(matched))
	offset := filter.Pagination.Normalize()
	return paginate(matched, offset, filter.PageSize), total, nil
}

type suspensionRepo struct{ s *Store }

func (r suspensionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Suspension, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.suspensions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySuspension(rec), nil
}

func (r suspensionRepo) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countFor(doctorID, false), nil
}

func (r suspensionRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.suspensionsFor(doctorID), nil
}

func (r suspensionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Suspension, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Suspension
	for _, rec := range s.suspensions {
		if rec.Expired(now) {
			out = append(out, copySuspension(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.EndDate.Before(*out[j].Period.EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type blacklistRepo struct{ s *Store }

func (r blacklistRepo) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.blacklist {
		if strings.EqualFold(e.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r blacklistRepo) List(ctx context.Context, page model.Pagination) ([]*model.BlacklistEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.BlacklistEntry, 0, len(r.s.blacklist))
	for i := len(r.s.blacklist) - 1; i >= 0; i-- {
		cp := *r.s.blacklist[i]
		out = append(out, &cp)
	}
	offset := page.Normalize()
	return paginate(out, offset, page.PageSize), int64(len(out)), nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) Create(ctx context.Context, log *model.ActivityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *log
	r.s.activity = append(r.s.activity, &cp)
	return nil
}

func (r activityRepo) List(ctx context.Context, filter *model.ActivityFilter) ([]*model.ActivityLog, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if filter == nil {
		filter = &model.ActivityFilter{}
	}

	var out []*model.ActivityLog
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		l := r.s.activity[i]
		if filter.ActorID != nil && l.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.EntityID != nil && l.EntityID != *filter.EntityID {
			continue
		}
		if filter.Since != nil && l.CreatedAt.Before(*filter.Since) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	offset := filter.Pagination.Normalize()
	return paginate(out, offset, filter.PageSize), int64(len(out)), nil
}

func (r activityRepo) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.activity[:0]
	var removed int64
	for _, l := range r.s.activity {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.s.activity = kept
	return removed, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := time.Now()
	var out []*model.OutboxEvent
	for _, evt := range r.s.outbox {
		if evt.Status != model.OutboxStatusPending && evt.Status != model.OutboxStatusRetry {
			continue
		}
		if evt.RetryAt != nil && evt.RetryAt.After(now) {
			continue
		}
		cp := *evt
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepo) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, evt := range r.s.outbox {
		if evt.ID == id {
			fn(evt)
			evt.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(evt *model.OutboxEvent) {
		now := time.Now().UTC()
		evt.Status = model.OutboxStatusProcessed
		evt.ProcessedAt = &now
		evt.ErrorMessage = nil
	})
}

func (r outboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(evt *model.OutboxEvent) {
		evt.Status = model.OutboxStatusRetry
		evt.ErrorMessage = &errMsg
		evt.RetryAt = &retryAt
		evt.RetryCount++
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(evt *model.OutboxEvent) {
		evt.Status = model.OutboxStatusFailed
		evt.ErrorMessage = &errMsg
	})
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var removed int64
	for _, evt := range r.s.outbox {
		if evt.Status == model.OutboxStatusProcessed && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, evt)
	}
	r.s.outbox = kept
	return removed, nil
}

func copySuspension(rec *model.Suspension) *model.Suspension {
	cp := *rec
	if rec.Reasons != nil {
		cp.Reasons = make([]model.SuspensionReason, len(rec.Reasons))
		copy(cp.Reasons, rec.Reasons)
	}
	if rec.ReviewedBy != nil {
		cp.ReviewedBy = make([]uuid.UUID, len(rec.ReviewedBy))
		copy(cp.ReviewedBy, rec.ReviewedBy)
	}
	if rec.Period.EndDate != nil {
		end := *rec.Period.EndDate
		cp.Period.EndDate = &end
	}
	if rec.Period.Duration != nil {
		d := *rec.Period.Duration
		cp.Period.Duration = &d
	}
	return &cp
}

func paginate[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
