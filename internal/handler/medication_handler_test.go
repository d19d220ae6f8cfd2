package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dskhairnar/backend-acme/internal/medication"
	"github.com/dskhairnar/backend-acme/internal/model"
)

func TestMedicationHandler_Create(t *testing.T) {
	var got medication.CreateInput
	h := NewMedicationHandler(&mockMedicationService{
		createFn: func(_ context.Context, owner model.UserID, in medication.CreateInput) (*model.Medication, error) {
			got = in
			return &model.Medication{ID: "m1", UserID: owner, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate}, nil
		},
	})

	body := `{"name":"Semaglutide","dosage":"0.25mg","frequency":"weekly","startDate":"2024-01-01","endDate":"2024-06-30"}`
	w := httptest.NewRecorder()
	h.Create(w, withPrincipal(jsonRequest(http.MethodPost, "/medications", body), patient()))

	assertStatus(t, w, http.StatusCreated)
	if got.Name != "Semaglutide" || got.Dosage != "0.25mg" || got.Frequency != "weekly" {
		t.Errorf("input = %+v", got)
	}
	if got.EndDate == nil || !got.EndDate.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EndDate = %v", got.EndDate)
	}
}

func TestMedicationHandler_Create_ValidationErrors(t *testing.T) {
	h := NewMedicationHandler(&mockMedicationService{})

	body := `{"name":"","frequency":"` + strings.Repeat("x", 201) + `","startDate":"soon"}`
	w := httptest.NewRecorder()
	h.Create(w, withPrincipal(jsonRequest(http.MethodPost, "/medications", body), patient()))

	assertStatus(t, w, http.StatusBadRequest)
	env := decodeEnvelope(t, w)
	for _, field := range []string{"name", "dosage", "frequency", "startDate"} {
		if env.Details[field] == "" {
			t.Errorf("details = %v, want key %q", env.Details, field)
		}
	}
}

func TestMedicationHandler_Create_EndBeforeStartFromService(t *testing.T) {
	h := NewMedicationHandler(&mockMedicationService{
		createFn: func(context.Context, model.UserID, medication.CreateInput) (*model.Medication, error) {
			return nil, model.NewValidationError(map[string]string{"endDate": "must be after startDate"})
		},
	})

	body := `{"name":"A","dosage":"1","frequency":"daily","startDate":"2024-02-01","endDate":"2024-01-01"}`
	w := httptest.NewRecorder()
	h.Create(w, withPrincipal(jsonRequest(http.MethodPost, "/medications", body), patient()))

	assertStatus(t, w, http.StatusBadRequest)
	if env := decodeEnvelope(t, w); env.Details["endDate"] == "" {
		t.Errorf("details = %v", env.Details)
	}
}

func TestMedicationHandler_Update_EndDateSemantics(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantClear bool
		wantEnd   bool
	}{
		{"absent leaves end date", `{"dosage":"0.5mg"}`, false, false},
		{"null clears end date", `{"endDate":null}`, true, false},
		{"value sets end date", `{"endDate":"2024-12-31"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got medication.UpdateInput
			h := NewMedicationHandler(&mockMedicationService{
				updateFn: func(_ context.Context, _ model.OwnerScope, id string, in medication.UpdateInput) (*model.Medication, error) {
					got = in
					return &model.Medication{ID: id}, nil
				},
			})

			req := withURLParam(withPrincipal(jsonRequest(http.MethodPut, "/medications/m1", tt.body), patient()), "id", "m1")
			w := httptest.NewRecorder()
			h.Update(w, req)

			assertStatus(t, w, http.StatusOK)
			if got.ClearEndDate != tt.wantClear {
				t.Errorf("ClearEndDate = %v, want %v", got.ClearEndDate, tt.wantClear)
			}
			if (got.EndDate != nil) != tt.wantEnd {
				t.Errorf("EndDate = %v, want set=%v", got.EndDate, tt.wantEnd)
			}
		})
	}
}

func TestMedicationHandler_Update_BlankNameRejected(t *testing.T) {
	h := NewMedicationHandler(&mockMedicationService{})

	req := withURLParam(withPrincipal(jsonRequest(http.MethodPut, "/medications/m1", `{"name":"  "}`), patient()), "id", "m1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	assertStatus(t, w, http.StatusBadRequest)
}

func TestMedicationHandler_List_ActiveFilter(t *testing.T) {
	var got model.ListQuery
	h := NewMedicationHandler(&mockMedicationService{
		listFn: func(_ context.Context, _ model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error) {
			got = q
			return &model.Page[*model.Medication]{}, nil
		},
	})

	w := httptest.NewRecorder()
	h.List(w, withPrincipal(httptest.NewRequest(http.MethodGet, "/medications?active=true&sortBy=name&order=asc", nil), patient()))

	assertStatus(t, w, http.StatusOK)
	if got.Filters[model.FilterActive] != "true" || got.SortField != "name" || got.SortDesc {
		t.Errorf("query = %+v", got)
	}
}

func TestMedicationHandler_Get_ForeignRecordIsNotFound(t *testing.T) {
	h := NewMedicationHandler(&mockMedicationService{})

	req := withURLParam(withPrincipal(httptest.NewRequest(http.MethodGet, "/medications/m1", nil), patient()), "id", "m1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	assertStatus(t, w, http.StatusNotFound)
}

func TestMedicationHandler_Create_StripsMarkup(t *testing.T) {
	var got medication.CreateInput
	h := NewMedicationHandler(&mockMedicationService{
		createFn: func(_ context.Context, owner model.UserID, in medication.CreateInput) (*model.Medication, error) {
			got = in
			return &model.Medication{ID: "m1", UserID: owner, Name: in.Name}, nil
		},
	})

	body := `{"name":"<b>Metformin</b>","dosage":"500mg","frequency":"daily","startDate":"2024-01-01","notes":"with food<script>alert(1)</script>"}`
	w := httptest.NewRecorder()
	h.Create(w, withPrincipal(jsonRequest(http.MethodPost, "/medications", body), patient()))

	assertStatus(t, w, http.StatusCreated)
	if got.Name != "Metformin" || got.Notes != "with food" {
		t.Errorf("input = %+v", got)
	}
}

func TestMedicationHandler_Create_MarkupOnlyNameIsRequired(t *testing.T) {
	h := NewMedicationHandler(&mockMedicationService{})

	body := `{"name":"<script>x</script>","dosage":"500mg","frequency":"daily","startDate":"2024-01-01"}`
	w := httptest.NewRecorder()
	h.Create(w, withPrincipal(jsonRequest(http.MethodPost, "/medications", body), patient()))

	assertStatus(t, w, http.StatusBadRequest)
	if env := decodeEnvelope(t, w); env.Details["name"] != "is required" {
		t.Errorf("details = %v", env.Details)
	}
}
