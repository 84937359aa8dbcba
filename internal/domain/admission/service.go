package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardops/wardops/internal/domain/audit"
	"github.com/wardops/wardops/internal/platform/keylock"
	"github.com/wardops/wardops/internal/platform/telemetry"
)

// How many times an operation re-reads and re-locks when the patient's bed
// assignment changes between the committed read and lock acquisition.
const maxLockRetries = 3

const defaultLockWait = 2 * time.Second

// Engine mediates every state change to patients and beds. Each operation
// acquires exclusive locks on the entities it touches, validates
// preconditions on state re-read under those locks, applies the transition
// and the audit append inside one transaction, and releases the locks on
// every exit path. No operation ever commits a partial effect.
type Engine struct {
	patients PatientRepository
	beds     BedRepository
	recorder *audit.Service
	tx       TxRunner
	locks    *keylock.Manager
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
	lockWait time.Duration
	now      func() time.Time
}

// EngineOptions tunes an Engine. The zero value is usable.
type EngineOptions struct {
	LockWait time.Duration
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

func NewEngine(patients PatientRepository, beds BedRepository, recorder *audit.Service, tx TxRunner, opts EngineOptions) *Engine {
	wait := opts.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &Engine{
		patients: patients,
		beds:     beds,
		recorder: recorder,
		tx:       tx,
		locks:    keylock.New(),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		lockWait: wait,
		now:      time.Now,
	}
}

func patientKey(id uuid.UUID) string { return "patient:" + id.String() }
func bedKey(id uuid.UUID) string     { return "bed:" + id.String() }

// acquire takes the entity locks with the configured bounded wait. A timeout
// surfaces as Busy rather than blocking the caller indefinitely.
func (e *Engine) acquire(ctx context.Context, keys ...string) (func(), error) {
	start := e.now()
	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()

	release, err := e.locks.Acquire(lockCtx, keys...)
	if e.metrics != nil {
		e.metrics.LockWait.Observe(e.now().Sub(start).Seconds())
	}
	if err != nil {
		return nil, WrapError(KindBusy, err, "timed out waiting for entity locks")
	}
	return release, nil
}

func (e *Engine) observe(op string, start time.Time, errp *error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if *errp != nil {
		outcome = string(KindOf(*errp))
	}
	e.metrics.RecordOp(op, outcome, e.now().Sub(start).Seconds())
}

func (e *Engine) refreshBedGauge(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	available, err := e.beds.ListAvailable(ctx)
	if err != nil {
		return
	}
	e.metrics.BedsAvailable.Set(float64(len(available)))
}

// storageWrap classifies err as StorageFailure unless it already carries an
// engine kind.
func storageWrap(err error, format string, args ...interface{}) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return WrapError(KindStorage, err, format, args...)
}

func sameBedRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RegisterBed creates a new bed in the available state.
func (e *Engine) RegisterBed(ctx context.Context, bedNumber, ward string) (res *Bed, err error) {
	defer e.observe("register_bed", e.now(), &err)

	if bedNumber == "" {
		return nil, NewError(KindValidation, "bedNumber is required")
	}
	if ward == "" {
		return nil, NewError(KindValidation, "ward is required")
	}

	bed := &Bed{
		ID:          uuid.New(),
		BedNumber:   bedNumber,
		Ward:        ward,
		Status:      BedAvailable,
		LastUpdated: e.now().UTC(),
	}

	txErr := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.beds.Create(ctx, bed); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return NewError(KindValidation, "bed number %q already exists", bedNumber)
			}
			return WrapError(KindStorage, err, "create bed")
		}
		details := fmt.Sprintf("Bed %s created in %s", bed.BedNumber, bed.Ward)
		if err := e.recorder.Record(ctx, audit.ActionBedUpdate, audit.EntityBed, bed.ID, details); err != nil {
			return WrapError(KindStorage, err, "record audit")
		}
		return nil
	})
	if txErr != nil {
		return nil, storageWrap(txErr, "register bed")
	}

	e.logger.Info().Str("bed_id", bed.ID.String()).Str("bed_number", bed.BedNumber).Str("ward", bed.Ward).Msg("bed registered")
	e.refreshBedGauge(ctx)
	return bed, nil
}

// Admit creates a patient and assigns the first available bed, lowest bed
// number first. Candidates are revalidated under their lock, so two
// concurrent admissions can never claim the same bed; when every candidate
// has been claimed in the meantime the admission fails with NoBedAvailable
// and changes nothing.
func (e *Engine) Admit(ctx context.Context, req AdmitRequest) (res *PatientWithBed, err error) {
	defer e.observe("admit", e.now(), &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	candidates, err := e.beds.ListAvailable(ctx)
	if err != nil {
		return nil, WrapError(KindStorage, err, "list available beds")
	}

	for _, candidate := range candidates {
		release, err := e.acquire(ctx, bedKey(candidate.ID))
		if err != nil {
			return nil, err
		}

		bed, err := e.beds.GetByID(ctx, candidate.ID)
		if err != nil {
			release()
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, WrapError(KindStorage, err, "read bed")
		}
		if bed.Status != BedAvailable {
			// Claimed between the scan and the lock; try the next one.
			release()
			continue
		}

		now := e.now().UTC()
		patient := &Patient{
			ID:                    uuid.New(),
			Name:                  req.Name,
			Age:                   req.Age,
			Gender:                req.Gender,
			Condition:             req.Condition,
			Priority:              req.Priority,
			AdmissionDate:         now,
			ExpectedDischargeDate: req.ExpectedDischargeDate,
			BedID:                 &bed.ID,
			Status:                StatusAdmitted,
		}

		txErr := e.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := e.patients.Create(ctx, patient); err != nil {
				return WrapError(KindStorage, err, "create patient")
			}
			bed.Status = BedOccupied
			bed.PatientID = &patient.ID
			bed.LastUpdated = now
			if err := e.beds.Update(ctx, bed); err != nil {
				return WrapError(KindStorage, err, "update bed")
			}
			details := fmt.Sprintf("Patient %s admitted to bed %s", patient.Name, bed.BedNumber)
			if err := e.recorder.Record(ctx, audit.ActionAdmission, audit.EntityPatient, patient.ID, details); err != nil {
				return WrapError(KindStorage, err, "record audit")
			}
			return nil
		})
		release()
		if txErr != nil {
			return nil, storageWrap(txErr, "admit patient")
		}

		e.logger.Info().
			Str("patient_id", patient.ID.String()).
			Str("bed_number", bed.BedNumber).
			Str("priority", string(patient.Priority)).
			Msg("patient admitted")
		e.refreshBedGauge(ctx)
		return &PatientWithBed{Patient: *patient, Bed: bed}, nil
	}

	return nil, NewError(KindNoBedAvailable, "no available beds")
}

// Discharge moves an admitted patient to discharged and frees their bed. The
// patient record keeps its last bed reference for historical reporting.
// Discharge is deliberately not idempotent: a second discharge fails with
// InvalidStateTransition.
func (e *Engine) Discharge(ctx context.Context, patientID uuid.UUID) (res *Patient, err error) {
	defer e.observe("discharge", e.now(), &err)

	for attempt := 0; attempt < maxLockRetries; attempt++ {
		p, err := e.patients.GetByID(ctx, patientID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "patient %s not found", patientID)
			}
			return nil, WrapError(KindStorage, err, "read patient")
		}

		keys := []string{patientKey(patientID)}
		if p.BedID != nil {
			keys = append(keys, bedKey(*p.BedID))
		}
		release, err := e.acquire(ctx, keys...)
		if err != nil {
			return nil, err
		}

		cur, err := e.patients.GetByID(ctx, patientID)
		if err != nil {
			release()
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "patient %s not found", patientID)
			}
			return nil, WrapError(KindStorage, err, "read patient")
		}
		if !sameBedRef(p.BedID, cur.BedID) {
			// A concurrent transfer moved the patient; lock the right bed.
			release()
			continue
		}
		if cur.Status != StatusAdmitted {
			release()
			return nil, NewError(KindInvalidStateTransition, "patient %s is already discharged", patientID)
		}

		now := e.now().UTC()
		txErr := e.tx.WithinTx(ctx, func(ctx context.Context) error {
			cur.Status = StatusDischarged
			cur.ActualDischargeDate = &now
			if err := e.patients.Update(ctx, cur); err != nil {
				return WrapError(KindStorage, err, "update patient")
			}
			if cur.BedID != nil {
				bed, err := e.beds.GetByID(ctx, *cur.BedID)
				if err != nil {
					return WrapError(KindStorage, err, "read bed")
				}
				bed.Status = BedAvailable
				bed.PatientID = nil
				bed.LastUpdated = now
				if err := e.beds.Update(ctx, bed); err != nil {
					return WrapError(KindStorage, err, "update bed")
				}
			}
			details := fmt.Sprintf("Patient %s discharged", cur.Name)
			if err := e.recorder.Record(ctx, audit.ActionDischarge, audit.EntityPatient, cur.ID, details); err != nil {
				return WrapError(KindStorage, err, "record audit")
			}
			return nil
		})
		release()
		if txErr != nil {
			return nil, storageWrap(txErr, "discharge patient")
		}

		e.logger.Info().Str("patient_id", cur.ID.String()).Msg("patient discharged")
		e.refreshBedGauge(ctx)
		return cur, nil
	}

	return nil, NewError(KindConflict, "patient %s is being modified concurrently", patientID)
}

// Transfer moves an admitted patient to a different available bed, freeing
// the old one. Transferring into an occupied or maintenance bed fails with
// BedNotAvailable; that includes the patient's current bed, so a same-bed
// transfer is rejected rather than treated as a no-op.
func (e *Engine) Transfer(ctx context.Context, patientID, newBedID uuid.UUID) (res *Patient, err error) {
	defer e.observe("transfer", e.now(), &err)

	for attempt := 0; attempt < maxLockRetries; attempt++ {
		p, err := e.patients.GetByID(ctx, patientID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "patient %s not found", patientID)
			}
			return nil, WrapError(KindStorage, err, "read patient")
		}
		if _, err := e.beds.GetByID(ctx, newBedID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "bed %s not found", newBedID)
			}
			return nil, WrapError(KindStorage, err, "read bed")
		}

		keys := []string{patientKey(patientID), bedKey(newBedID)}
		if p.BedID != nil {
			keys = append(keys, bedKey(*p.BedID))
		}
		release, err := e.acquire(ctx, keys...)
		if err != nil {
			return nil, err
		}

		cur, err := e.patients.GetByID(ctx, patientID)
		if err != nil {
			release()
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "patient %s not found", patientID)
			}
			return nil, WrapError(KindStorage, err, "read patient")
		}
		if !sameBedRef(p.BedID, cur.BedID) {
			release()
			continue
		}
		if cur.Status != StatusAdmitted {
			release()
			return nil, NewError(KindInvalidStateTransition, "patient %s is not admitted", patientID)
		}

		newBed, err := e.beds.GetByID(ctx, newBedID)
		if err != nil {
			release()
			if errors.Is(err, ErrNotFound) {
				return nil, NewError(KindNotFound, "bed %s not found", newBedID)
			}
			return nil, WrapError(KindStorage, err, "read bed")
		}
		if newBed.Status != BedAvailable {
			release()
			return nil, NewError(KindBedNotAvailable, "bed %s is not available", newBed.BedNumber)
		}

		now := e.now().UTC()
		txErr := e.tx.WithinTx(ctx, func(ctx context.Context) error {
			if cur.BedID != nil {
				oldBed, err := e.beds.GetByID(ctx, *cur.BedID)
				if err != nil {
					return WrapError(KindStorage, err, "read bed")
				}
				oldBed.Status = BedAvailable
				oldBed.PatientID = nil
				oldBed.LastUpdated = now
				if err := e.beds.Update(ctx, oldBed); err != nil {
					return WrapError(KindStorage, err, "update bed")
				}
			}
			newBed.Status = BedOccupied
			newBed.PatientID = &cur.ID
			newBed.LastUpdated = now
			if err := e.beds.Update(ctx, newBed); err != nil {
				return WrapError(KindStorage, err, "update bed")
			}
			cur.BedID = &newBed.ID
			if err := e.patients.Update(ctx, cur); err != nil {
				return WrapError(KindStorage, err, "update patient")
			}
			details := fmt.Sprintf("Patient %s transferred to bed %s", cur.Name, newBed.BedNumber)
			if err := e.recorder.Record(ctx, audit.ActionTransfer, audit.EntityPatient, cur.ID, details); err != nil {
				return WrapError(KindStorage, err, "record audit")
			}
			return nil
		})
		release()
		if txErr != nil {
			return nil, storageWrap(txErr, "transfer patient")
		}

		e.logger.Info().
			Str("patient_id", cur.ID.String()).
			Str("bed_number", newBed.BedNumber).
			Msg("patient transferred")
		e.refreshBedGauge(ctx)
		return cur, nil
	}

	return nil, NewError(KindConflict, "patient %s is being modified concurrently", patientID)
}

// UpdateBedStatus changes a bed's status outside the patient flow, for
// example into maintenance. A bed can never enter or leave occupied through
// this path; only admissions, transfers and discharges move beds in and out
// of occupied, which keeps patient references from being orphaned.
func (e *Engine) UpdateBedStatus(ctx context.Context, bedID uuid.UUID, newStatus BedStatus) (res *Bed, err error) {
	defer e.observe("update_bed_status", e.now(), &err)

	if !newStatus.Valid() {
		return nil, NewError(KindValidation, "invalid bed status: %s", newStatus)
	}
	if newStatus == BedOccupied {
		return nil, NewError(KindInvalidStateTransition, "a bed cannot be made occupied directly; admit or transfer a patient")
	}

	release, err := e.acquire(ctx, bedKey(bedID))
	if err != nil {
		return nil, err
	}
	defer release()

	bed, err := e.beds.GetByID(ctx, bedID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(KindNotFound, "bed %s not found", bedID)
		}
		return nil, WrapError(KindStorage, err, "read bed")
	}
	if bed.Status == BedOccupied || bed.PatientID != nil {
		return nil, NewError(KindInvalidStateTransition, "bed %s is occupied; discharge or transfer the patient first", bed.BedNumber)
	}
	if bed.Status == newStatus {
		return nil, NewError(KindInvalidStateTransition, "bed %s is already %s", bed.BedNumber, newStatus)
	}

	oldStatus := bed.Status
	now := e.now().UTC()
	txErr := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		bed.Status = newStatus
		bed.LastUpdated = now
		if err := e.beds.Update(ctx, bed); err != nil {
			return WrapError(KindStorage, err, "update bed")
		}
		details := fmt.Sprintf("Bed %s status changed from %s to %s", bed.BedNumber, oldStatus, newStatus)
		if err := e.recorder.Record(ctx, audit.ActionBedUpdate, audit.EntityBed, bed.ID, details); err != nil {
			return WrapError(KindStorage, err, "record audit")
		}
		return nil
	})
	if txErr != nil {
		return nil, storageWrap(txErr, "update bed status")
	}

	e.logger.Info().
		Str("bed_id", bed.ID.String()).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(newStatus)).
		Msg("bed status updated")
	e.refreshBedGauge(ctx)
	return bed, nil
}
