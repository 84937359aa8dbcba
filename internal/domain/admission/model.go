package admission

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks how urgently a patient needs care.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// PatientStatus tracks a patient's lifecycle. "transferred" exists for record
// parity with historical data; the engine keeps a patient "admitted" across
// transfers and only ever moves admitted patients to "discharged", which is
// terminal.
type PatientStatus string

const (
	StatusAdmitted    PatientStatus = "admitted"
	StatusDischarged  PatientStatus = "discharged"
	StatusTransferred PatientStatus = "transferred"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case StatusAdmitted, StatusDischarged, StatusTransferred:
		return true
	}
	return false
}

// BedStatus tracks a bed's lifecycle. Beds move between available and
// occupied only through admissions, discharges and transfers; maintenance is
// entered and left only through direct status updates, and only from
// available.
type BedStatus string

const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedMaintenance BedStatus = "maintenance"
)

func (s BedStatus) Valid() bool {
	switch s {
	case BedAvailable, BedOccupied, BedMaintenance:
		return true
	}
	return false
}

// Patient is a hospital patient record. BedID is a weak reference resolved
// through the bed repository; after discharge it retains the last assigned
// bed for historical reporting even though the bed itself is freed.
type Patient struct {
	ID                    uuid.UUID     `db:"id" json:"id"`
	Name                  string        `db:"name" json:"name"`
	Age                   int           `db:"age" json:"age"`
	Gender                string        `db:"gender" json:"gender"`
	Condition             string        `db:"condition" json:"condition"`
	Priority              Priority      `db:"priority" json:"priority"`
	AdmissionDate         time.Time     `db:"admission_date" json:"admissionDate"`
	ExpectedDischargeDate *time.Time    `db:"expected_discharge_date" json:"expectedDischargeDate,omitempty"`
	ActualDischargeDate   *time.Time    `db:"actual_discharge_date" json:"actualDischargeDate,omitempty"`
	BedID                 *uuid.UUID    `db:"bed_id" json:"bedId,omitempty"`
	Status                PatientStatus `db:"status" json:"status"`
}

func (p *Patient) clone() *Patient {
	c := *p
	if p.ExpectedDischargeDate != nil {
		d := *p.ExpectedDischargeDate
		c.ExpectedDischargeDate = &d
	}
	if p.ActualDischargeDate != nil {
		d := *p.ActualDischargeDate
		c.ActualDischargeDate = &d
	}
	if p.BedID != nil {
		id := *p.BedID
		c.BedID = &id
	}
	return &c
}

// Bed is a hospital bed. PatientID is a weak reference to the current
// occupant; it is null whenever the bed is not occupied.
type Bed struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	BedNumber   string     `db:"bed_number" json:"bedNumber"`
	Ward        string     `db:"ward" json:"ward"`
	Status      BedStatus  `db:"status" json:"status"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patientId,omitempty"`
	LastUpdated time.Time  `db:"last_updated" json:"lastUpdated"`
}

func (b *Bed) clone() *Bed {
	c := *b
	if b.PatientID != nil {
		id := *b.PatientID
		c.PatientID = &id
	}
	return &c
}

// PatientWithBed joins a patient with its resolved bed (nil when unassigned).
type PatientWithBed struct {
	Patient
	Bed *Bed `json:"bed,omitempty"`
}

// BedWithPatient joins a bed with its resolved occupant (nil when empty).
type BedWithPatient struct {
	Bed
	Patient *Patient `json:"patient,omitempty"`
}

// CensusStats summarizes ward occupancy for dashboards.
type CensusStats struct {
	TotalBeds        int     `json:"totalBeds"`
	AvailableBeds    int     `json:"availableBeds"`
	OccupiedBeds     int     `json:"occupiedBeds"`
	MaintenanceBeds  int     `json:"maintenanceBeds"`
	AdmittedPatients int     `json:"admittedPatients"`
	DischargedToday  int     `json:"dischargedToday"`
	OccupancyRate    float64 `json:"occupancyRate"`
}

// AdmitRequest carries the caller-supplied fields of an admission.
type AdmitRequest struct {
	Name                  string     `json:"name"`
	Age                   int        `json:"age"`
	Gender                string     `json:"gender"`
	Condition             string     `json:"condition"`
	Priority              Priority   `json:"priority,omitempty"`
	ExpectedDischargeDate *time.Time `json:"expectedDischargeDate,omitempty"`
}

// Validate checks input constraints and fills the priority default.
func (r *AdmitRequest) Validate() error {
	if r.Name == "" {
		return NewError(KindValidation, "name is required")
	}
	if r.Age <= 0 {
		return NewError(KindValidation, "age must be a positive integer")
	}
	if r.Gender == "" {
		return NewError(KindValidation, "gender is required")
	}
	if r.Condition == "" {
		return NewError(KindValidation, "condition is required")
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Priority.Valid() {
		return NewError(KindValidation, "invalid priority: %s", r.Priority)
	}
	return nil
}
