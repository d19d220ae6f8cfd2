package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

const testUserID = model.UserID("6f9619ff-8b86-d011-b42d-00c04fc964ff")

func TestBuildList_ScopedDefaults(t *testing.T) {
	selectSQL, countSQL, args := buildList(weightListSpec, model.ScopeOf(testUserID), model.ListQuery{Page: 1, Limit: 10, SortDesc: true})

	if countSQL != "SELECT count(*) FROM weight_entries WHERE user_id = $1" {
		t.Errorf("countSQL = %q", countSQL)
	}
	if !strings.Contains(selectSQL, "ORDER BY recorded_at DESC, id DESC LIMIT $2 OFFSET $3") {
		t.Errorf("selectSQL = %q, want default sort with id tiebreaker", selectSQL)
	}
	if len(args) != 3 || args[0] != string(testUserID) || args[1] != 10 || args[2] != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildList_AdminScopeHasNoOwnerFilter(t *testing.T) {
	_, countSQL, args := buildList(weightListSpec, model.OwnerScope{All: true}, model.ListQuery{Page: 2, Limit: 20})

	if strings.Contains(countSQL, "user_id") {
		t.Errorf("countSQL = %q, admin scope must not filter by owner", countSQL)
	}
	if len(args) != 2 || args[0] != 20 || args[1] != 20 {
		t.Errorf("args = %v, want [20 20]", args)
	}
}

func TestBuildList_DateRangeIsHalfOpen(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, countSQL, args := buildList(weightListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, From: &from, Until: &until,
	})

	want := "SELECT count(*) FROM weight_entries WHERE user_id = $1 AND recorded_at >= $2 AND recorded_at < $3"
	if countSQL != want {
		t.Errorf("countSQL = %q, want %q", countSQL, want)
	}
	if args[1] != from || args[2] != until {
		t.Errorf("date args = %v %v", args[1], args[2])
	}
}

func TestBuildList_UnknownSortFallsBackToDefault(t *testing.T) {
	selectSQL, _, _ := buildList(medicationListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, SortField: "password_hash; DROP TABLE users",
	})

	if !strings.Contains(selectSQL, "ORDER BY start_date ASC, id ASC") {
		t.Errorf("selectSQL = %q, want fallback to start_date", selectSQL)
	}
	if strings.Contains(selectSQL, "DROP") {
		t.Errorf("selectSQL must never contain client text: %q", selectSQL)
	}
}

func TestBuildList_NullableSortPutsNullsLast(t *testing.T) {
	selectSQL, _, _ := buildList(shipmentListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, SortField: "deliveredAt", SortDesc: true,
	})

	if !strings.Contains(selectSQL, "ORDER BY delivered_at DESC NULLS LAST, id DESC") {
		t.Errorf("selectSQL = %q", selectSQL)
	}
}

func TestBuildList_StatusFilter(t *testing.T) {
	_, countSQL, args := buildList(shipmentListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, Filters: map[string]string{model.FilterStatus: "Shipped"},
	})

	if countSQL != "SELECT count(*) FROM shipments WHERE user_id = $1 AND status = $2" {
		t.Errorf("countSQL = %q", countSQL)
	}
	if args[1] != "shipped" {
		t.Errorf("status arg = %v, want shipped", args[1])
	}
}

func TestBuildList_InvalidFilterValueIsIgnored(t *testing.T) {
	_, countSQL, _ := buildList(shipmentListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, Filters: map[string]string{model.FilterStatus: "lost", "unknown": "x"},
	})

	if countSQL != "SELECT count(*) FROM shipments WHERE user_id = $1" {
		t.Errorf("countSQL = %q", countSQL)
	}
}

func TestBuildList_ActiveFilter(t *testing.T) {
	_, activeSQL, _ := buildList(medicationListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, Filters: map[string]string{model.FilterActive: "true"},
	})
	if !strings.Contains(activeSQL, "end_date IS NULL OR end_date > now()") {
		t.Errorf("active SQL = %q", activeSQL)
	}

	_, inactiveSQL, _ := buildList(medicationListSpec, model.ScopeOf(testUserID), model.ListQuery{
		Page: 1, Limit: 50, Filters: map[string]string{model.FilterActive: "false"},
	})
	if !strings.Contains(inactiveSQL, "end_date <= now()") {
		t.Errorf("inactive SQL = %q", inactiveSQL)
	}
}

func TestWhereBuilder_SplitKeepsPlaceholderNumbering(t *testing.T) {
	w := &whereBuilder{}
	w.add("weight = ?", 80.0)
	w.add("note = ?", "n")
	set := w.split()
	w.add("id = ?", "x")

	if joinSet(set) != "weight = $1, note = $2" {
		t.Errorf("set = %q", joinSet(set))
	}
	if w.sql() != " WHERE id = $3" {
		t.Errorf("where = %q", w.sql())
	}
	if len(w.args) != 3 {
		t.Errorf("args = %v", w.args)
	}
}
