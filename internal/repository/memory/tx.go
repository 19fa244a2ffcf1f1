package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
)

// memTx stages writes on top of the committed store. Reads through the tx
// see its own writes; nothing reaches the store until commit. Committed
// records are replaced on commit, never mutated in place.
type memTx struct {
	store *Store

	doctors        map[uuid.UUID]*model.Doctor
	deletedDoctors map[uuid.UUID]bool

	suspensions map[uuid.UUID]*model.Suspension
	created     []uuid.UUID
	// wiped holds doctors whose committed suspension records are deleted.
	wiped map[uuid.UUID]bool

	blacklist []*model.BlacklistEntry
	outbox    []*model.OutboxEvent
}

func newMemTx(s *Store) *memTx {
	return &memTx{
		store:          s,
		doctors:        make(map[uuid.UUID]*model.Doctor),
		deletedDoctors: make(map[uuid.UUID]bool),
		suspensions:    make(map[uuid.UUID]*model.Suspension),
		wiped:          make(map[uuid.UUID]bool),
	}
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.deletedDoctors {
		delete(s.doctors, id)
		delete(s.seq, id)
	}
	for id, d := range t.doctors {
		s.doctors[id] = d
	}

	for id, rec := range s.suspensions {
		if t.wiped[rec.DoctorID] {
			delete(s.suspensions, id)
			delete(s.seq, id)
		}
	}
	for _, id := range t.created {
		if rec, ok := t.suspensions[id]; ok {
			s.suspensions[id] = rec
			s.nextSequence(id)
		}
	}
	for id, rec := range t.suspensions {
		s.suspensions[id] = rec
	}

	s.blacklist = append(s.blacklist, t.blacklist...)
	s.outbox = append(s.outbox, t.outbox...)
}

func (t *memTx) FindDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if t.deletedDoctors[id] {
		return nil, repository.ErrNotFound
	}
	if d, ok := t.doctors[id]; ok {
		cp := *d
		return &cp, nil
	}
	return t.store.Doctors().Get(ctx, id)
}

func (t *memTx) UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Doctor, error) {
	d, err := t.FindDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	d.LockVersion++
	t.doctors[id] = d

	cp := *d
	return &cp, nil
}

func (t *memTx) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := t.FindDoctor(ctx, id); err != nil {
		return err
	}
	delete(t.doctors, id)
	t.deletedDoctors[id] = true
	return nil
}

// suspensionsOf merges committed and staged records of one doctor.
func (t *memTx) suspensionsOf(doctorID uuid.UUID) []*model.Suspension {
	var out []*model.Suspension
	if !t.wiped[doctorID] {
		t.store.mu.RLock()
		for id, rec := range t.store.suspensions {
			if rec.DoctorID != doctorID {
				continue
			}
			if _, staged := t.suspensions[id]; !staged {
				out = append(out, rec)
			}
		}
		t.store.mu.RUnlock()
	}
	for _, rec := range t.suspensions {
		if rec.DoctorID == doctorID {
			out = append(out, rec)
		}
	}
	return out
}

func (t *memTx) CountSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return len(t.suspensionsOf(doctorID)), nil
}

func (t *memTx) CountActiveSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	n := 0
	for _, rec := range t.suspensionsOf(doctorID) {
		if rec.IsActive() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetSuspension(ctx context.Context, id uuid.UUID) (*model.Suspension, error) {
	if rec, ok := t.suspensions[id]; ok {
		return copySuspension(rec), nil
	}
	rec, err := t.store.Suspensions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.wiped[rec.DoctorID] {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (t *memTx) CreateSuspension(ctx context.Context, rec *model.Suspension) error {
	if _, ok := t.suspensions[rec.ID]; ok {
		return repository.ErrDuplicate
	}
	if _, err := t.store.Suspensions().Get(ctx, rec.ID); err == nil {
		return repository.ErrDuplicate
	}
	t.suspensions[rec.ID] = copySuspension(rec)
	t.created = append(t.created, rec.ID)
	return nil
}

func (t *memTx) UpdateSuspension(ctx context.Context, rec *model.Suspension) error {
	if _, err := t.GetSuspension(ctx, rec.ID); err != nil {
		return err
	}
	t.suspensions[rec.ID] = copySuspension(rec)
	return nil
}

func (t *memTx) DeleteSuspensions(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	n := len(t.suspensionsOf(doctorID))
	for id, rec := range t.suspensions {
		if rec.DoctorID == doctorID {
			delete(t.suspensions, id)
		}
	}
	t.wiped[doctorID] = true
	return int64(n), nil
}

func (t *memTx) CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error {
	cp := *entry
	if entry.FinalSuspension != nil {
		cp.FinalSuspension = copySuspension(entry.FinalSuspension)
	}
	t.blacklist = append(t.blacklist, &cp)
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error {
	cp := *event
	t.outbox = append(t.outbox, &cp)
	return nil
}
