package admission

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEnumValidity(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		if !p.Valid() {
			t.Errorf("priority %s should be valid", p)
		}
	}
	if Priority("urgent").Valid() {
		t.Error("unknown priority accepted")
	}

	for _, s := range []BedStatus{BedAvailable, BedOccupied, BedMaintenance} {
		if !s.Valid() {
			t.Errorf("bed status %s should be valid", s)
		}
	}
	if BedStatus("reserved").Valid() {
		t.Error("unknown bed status accepted")
	}

	for _, s := range []PatientStatus{StatusAdmitted, StatusDischarged, StatusTransferred} {
		if !s.Valid() {
			t.Errorf("patient status %s should be valid", s)
		}
	}
}

func TestPatientClone_Independent(t *testing.T) {
	bedID := uuid.New()
	expected := time.Now().UTC()
	p := &Patient{ID: uuid.New(), Name: "Ada", BedID: &bedID, ExpectedDischargeDate: &expected}

	c := p.clone()
	*c.BedID = uuid.New()
	*c.ExpectedDischargeDate = expected.Add(time.Hour)

	if *p.BedID != bedID {
		t.Error("clone shares the bed id pointer")
	}
	if !p.ExpectedDischargeDate.Equal(expected) {
		t.Error("clone shares the expected discharge date pointer")
	}
}

func TestBedClone_Independent(t *testing.T) {
	patientID := uuid.New()
	b := &Bed{ID: uuid.New(), BedNumber: "B-1", PatientID: &patientID}

	c := b.clone()
	*c.PatientID = uuid.New()

	if *b.PatientID != patientID {
		t.Error("clone shares the patient id pointer")
	}
}

func TestAdmitRequest_Validate(t *testing.T) {
	req := AdmitRequest{Name: "Ada", Age: 36, Gender: "female", Condition: "flu"}
	if err := req.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if req.Priority != PriorityMedium {
		t.Errorf("priority default = %s, want medium", req.Priority)
	}

	req.Priority = PriorityCritical
	if err := req.Validate(); err != nil {
		t.Fatalf("explicit priority rejected: %v", err)
	}
	if req.Priority != PriorityCritical {
		t.Error("explicit priority overwritten")
	}
}
