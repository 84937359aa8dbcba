package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestRouter(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := NewService(newMockRepo(), "system")
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Data  []Entry `json:"data"`
	Total int     `json:"total"`
}

func TestHandler_List(t *testing.T) {
	e, svc := newTestRouter(t)
	patientID := uuid.New()
	svc.Record(context.Background(), ActionAdmission, EntityPatient, patientID, "Patient Ada admitted to bed B-101")
	svc.Record(context.Background(), ActionBedUpdate, EntityBed, uuid.New(), "Bed B-202 created in ICU")

	rec := get(e, "/api/v1/audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Data) != 2 {
		t.Fatalf("total = %d, items = %d", body.Total, len(body.Data))
	}
	// Newest first.
	if body.Data[0].Action != ActionBedUpdate {
		t.Fatalf("first action = %s, want bed_update", body.Data[0].Action)
	}
	if body.Data[0].Actor != "system" {
		t.Fatalf("actor = %q, want system", body.Data[0].Actor)
	}
}

func TestHandler_ListByEntityType(t *testing.T) {
	e, svc := newTestRouter(t)
	svc.Record(context.Background(), ActionAdmission, EntityPatient, uuid.New(), "a")
	svc.Record(context.Background(), ActionBedUpdate, EntityBed, uuid.New(), "b")

	rec := get(e, "/api/v1/audit/bed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Data[0].EntityType != EntityBed {
		t.Fatalf("unexpected filter result: %+v", body)
	}

	if rec := get(e, "/api/v1/audit/ward"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid entity type status = %d, want 400", rec.Code)
	}
}

func TestHandler_ListByEntityID(t *testing.T) {
	e, svc := newTestRouter(t)
	patientID := uuid.New()
	svc.Record(context.Background(), ActionAdmission, EntityPatient, patientID, "a")
	svc.Record(context.Background(), ActionDischarge, EntityPatient, patientID, "b")
	svc.Record(context.Background(), ActionAdmission, EntityPatient, uuid.New(), "c")

	rec := get(e, "/api/v1/audit/entity/"+patientID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2", body.Total)
	}

	if rec := get(e, "/api/v1/audit/entity/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d, want 400", rec.Code)
	}
}

func TestHandler_Pagination(t *testing.T) {
	e, svc := newTestRouter(t)
	id := uuid.New()
	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), ActionTransfer, EntityPatient, id, "move")
	}

	rec := get(e, "/api/v1/audit?limit=2&offset=2")
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 5 || len(body.Data) != 2 {
		t.Fatalf("total = %d, page = %d", body.Total, len(body.Data))
	}
	if body.Data[0].Seq != 3 {
		t.Fatalf("page start seq = %d, want 3", body.Data[0].Seq)
	}
}
