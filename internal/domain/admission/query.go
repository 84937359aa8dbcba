package admission

import (
	"context"
	"time"
)

// Query answers read-only questions about the current census. Each call runs
// its reads inside one transaction scope so the patient and bed lists it
// joins come from a single consistent snapshot.
type Query struct {
	patients PatientRepository
	beds     BedRepository
	tx       TxRunner
	now      func() time.Time
}

func NewQuery(patients PatientRepository, beds BedRepository, tx TxRunner) *Query {
	return &Query{patients: patients, beds: beds, tx: tx, now: time.Now}
}

// ListPatients returns every patient with their resolved bed. Only admitted
// patients resolve a bed; a discharged patient keeps its historical bed id
// but the bed shown there may already hold someone else, so it is omitted.
func (q *Query) ListPatients(ctx context.Context) ([]*PatientWithBed, error) {
	var out []*PatientWithBed
	err := q.tx.WithinTx(ctx, func(ctx context.Context) error {
		patients, err := q.patients.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list patients")
		}
		beds, err := q.beds.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list beds")
		}
		byID := make(map[string]*Bed, len(beds))
		for _, b := range beds {
			byID[b.ID.String()] = b
		}
		out = make([]*PatientWithBed, 0, len(patients))
		for _, p := range patients {
			item := &PatientWithBed{Patient: *p}
			if p.Status == StatusAdmitted && p.BedID != nil {
				item.Bed = byID[p.BedID.String()]
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, storageWrap(err, "list patients")
	}
	return out, nil
}

// ListBeds returns every bed with its resolved occupant.
func (q *Query) ListBeds(ctx context.Context) ([]*BedWithPatient, error) {
	var out []*BedWithPatient
	err := q.tx.WithinTx(ctx, func(ctx context.Context) error {
		beds, err := q.beds.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list beds")
		}
		patients, err := q.patients.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list patients")
		}
		byID := make(map[string]*Patient, len(patients))
		for _, p := range patients {
			byID[p.ID.String()] = p
		}
		out = make([]*BedWithPatient, 0, len(beds))
		for _, b := range beds {
			item := &BedWithPatient{Bed: *b}
			if b.PatientID != nil {
				item.Patient = byID[b.PatientID.String()]
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, storageWrap(err, "list beds")
	}
	return out, nil
}

// Stats computes the census summary. DischargedToday counts discharges whose
// actual discharge date falls on the current UTC day.
func (q *Query) Stats(ctx context.Context) (*CensusStats, error) {
	stats := &CensusStats{}
	err := q.tx.WithinTx(ctx, func(ctx context.Context) error {
		beds, err := q.beds.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list beds")
		}
		patients, err := q.patients.List(ctx)
		if err != nil {
			return WrapError(KindStorage, err, "list patients")
		}

		for _, b := range beds {
			stats.TotalBeds++
			switch b.Status {
			case BedAvailable:
				stats.AvailableBeds++
			case BedOccupied:
				stats.OccupiedBeds++
			case BedMaintenance:
				stats.MaintenanceBeds++
			}
		}

		today := q.now().UTC().Truncate(24 * time.Hour)
		for _, p := range patients {
			switch p.Status {
			case StatusAdmitted:
				stats.AdmittedPatients++
			case StatusDischarged:
				if p.ActualDischargeDate != nil && p.ActualDischargeDate.UTC().Truncate(24*time.Hour).Equal(today) {
					stats.DischargedToday++
				}
			}
		}

		if stats.TotalBeds > 0 {
			stats.OccupancyRate = float64(stats.OccupiedBeds) / float64(stats.TotalBeds) * 100
		}
		return nil
	})
	if err != nil {
		return nil, storageWrap(err, "census stats")
	}
	return stats, nil
}
