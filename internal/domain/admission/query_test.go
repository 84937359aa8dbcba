package admission

import (
	"context"
	"testing"
	"time"
)

func newTestQuery(t *testing.T) (*Engine, *Query, *MemStore) {
	t.Helper()
	engine, store := newTestEngine(t)
	query := NewQuery(store.Patients(), store.Beds(), store)
	return engine, query, store
}

func TestListBeds_ResolvesOccupants(t *testing.T) {
	engine, query, _ := newTestQuery(t)
	registerBed(t, engine, "B-101", "ICU")
	registerBed(t, engine, "B-202", "General")
	admitted := admitPatient(t, engine, "Ada")

	beds, err := query.ListBeds(context.Background())
	if err != nil {
		t.Fatalf("list beds: %v", err)
	}
	if len(beds) != 2 {
		t.Fatalf("beds = %d, want 2", len(beds))
	}
	// Ordered by bed number; B-101 holds Ada.
	if beds[0].BedNumber != "B-101" || beds[0].Patient == nil || beds[0].Patient.ID != admitted.ID {
		t.Fatalf("B-101 occupant not resolved: %+v", beds[0])
	}
	if beds[1].Patient != nil {
		t.Fatal("empty bed resolved an occupant")
	}
}

func TestListPatients_ResolvesBeds(t *testing.T) {
	engine, query, _ := newTestQuery(t)
	registerBed(t, engine, "B-101", "ICU")
	registerBed(t, engine, "B-202", "General")
	first := admitPatient(t, engine, "Ada")
	second := admitPatient(t, engine, "Grace")
	if _, err := engine.Discharge(context.Background(), second.ID); err != nil {
		t.Fatalf("discharge: %v", err)
	}

	patients, err := query.ListPatients(context.Background())
	if err != nil {
		t.Fatalf("list patients: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("patients = %d, want 2", len(patients))
	}
	for _, p := range patients {
		switch p.ID {
		case first.ID:
			if p.Bed == nil || p.Bed.BedNumber != "B-101" {
				t.Fatalf("admitted patient bed not resolved: %+v", p.Bed)
			}
		case second.ID:
			if p.Bed != nil {
				t.Fatal("discharged patient resolved a bed")
			}
			if p.BedID == nil {
				t.Fatal("discharged patient lost historical bed id")
			}
		default:
			t.Fatalf("unexpected patient %s", p.ID)
		}
	}
}

// Every occupied bed must appear in the patient listing with a matching bed
// reference, and every resolved patient bed must point back at that bed.
func TestListViewsAgree(t *testing.T) {
	engine, query, _ := newTestQuery(t)
	for _, n := range []string{"B-101", "B-102", "B-103"} {
		registerBed(t, engine, n, "General")
	}
	admitPatient(t, engine, "Ada")
	admitPatient(t, engine, "Grace")

	ctx := context.Background()
	beds, err := query.ListBeds(ctx)
	if err != nil {
		t.Fatalf("list beds: %v", err)
	}
	patients, err := query.ListPatients(ctx)
	if err != nil {
		t.Fatalf("list patients: %v", err)
	}

	for _, b := range beds {
		if b.PatientID == nil {
			continue
		}
		found := false
		for _, p := range patients {
			if p.ID == *b.PatientID && p.BedID != nil && *p.BedID == b.ID {
				found = true
			}
		}
		if !found {
			t.Fatalf("bed %s occupant missing from patient listing", b.BedNumber)
		}
	}
	for _, p := range patients {
		if p.Bed == nil {
			continue
		}
		if p.Bed.PatientID == nil || *p.Bed.PatientID != p.ID {
			t.Fatalf("patient %s resolved bed does not point back", p.Name)
		}
	}
}

func TestStats(t *testing.T) {
	engine, query, _ := newTestQuery(t)
	for _, n := range []string{"B-101", "B-102", "B-103", "B-104"} {
		registerBed(t, engine, n, "General")
	}
	maint := registerBed(t, engine, "B-105", "General")
	if _, err := engine.UpdateBedStatus(context.Background(), maint.ID, BedMaintenance); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	admitPatient(t, engine, "Ada")
	gone := admitPatient(t, engine, "Grace")
	if _, err := engine.Discharge(context.Background(), gone.ID); err != nil {
		t.Fatalf("discharge: %v", err)
	}

	stats, err := query.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBeds != 5 || stats.AvailableBeds != 3 || stats.OccupiedBeds != 1 || stats.MaintenanceBeds != 1 {
		t.Fatalf("bed counts = %+v", stats)
	}
	if stats.AdmittedPatients != 1 {
		t.Fatalf("admitted = %d, want 1", stats.AdmittedPatients)
	}
	if stats.DischargedToday != 1 {
		t.Fatalf("discharged today = %d, want 1", stats.DischargedToday)
	}
	want := float64(1) / float64(5) * 100
	if stats.OccupancyRate != want {
		t.Fatalf("occupancy rate = %v, want %v", stats.OccupancyRate, want)
	}
}

func TestStats_DischargedTodayIsDateBound(t *testing.T) {
	engine, query, store := newTestQuery(t)
	registerBed(t, engine, "B-101", "ICU")
	admitted := admitPatient(t, engine, "Ada")
	if _, err := engine.Discharge(context.Background(), admitted.ID); err != nil {
		t.Fatalf("discharge: %v", err)
	}

	// Backdate the discharge to yesterday; it must drop out of the count.
	p, err := store.Patients().GetByID(context.Background(), admitted.ID)
	if err != nil {
		t.Fatalf("read patient: %v", err)
	}
	yesterday := time.Now().UTC().Add(-48 * time.Hour)
	p.ActualDischargeDate = &yesterday
	if err := store.Patients().Update(context.Background(), p); err != nil {
		t.Fatalf("update patient: %v", err)
	}

	stats, err := query.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DischargedToday != 0 {
		t.Fatalf("discharged today = %d, want 0", stats.DischargedToday)
	}
}

func TestStats_EmptyStore(t *testing.T) {
	_, query, _ := newTestQuery(t)
	stats, err := query.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBeds != 0 || stats.OccupancyRate != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}
}
