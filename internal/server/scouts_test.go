package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/scoutrun/scout/internal/store"
)

func scoutRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "goal", "location", "queries",
		"frequency", "is_active", "last_run_at", "created_at", "updated_at",
	}).AddRow("scout-1", "user-1", "Prices", "track gadget prices", []byte(`{}`), []byte(`{"gadget prices"}`),
		"weekly", true, nil, now, now)
}

func TestCreateScout(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ScoutsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO scouts (user_id, title, goal, location, queries, frequency, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`)).
		WithArgs("user-1", "Prices", "track gadget prices", sqlmock.AnyArg(), sqlmock.AnyArg(), "weekly", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("scout-1"))

	body := `{"title":"Prices","goal":"track gadget prices","queries":["gadget prices"],"frequency":"weekly"}`
	req := httptest.NewRequest(http.MethodPost, "/api/scouts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "scout-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateScoutRequiresGoal(t *testing.T) {
	e := echo.New()
	handler := &ScoutsHandler{}

	req := httptest.NewRequest(http.MethodPost, "/api/scouts", strings.NewReader(`{"title":"no goal"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := handler.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRunNowConflict(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ScoutsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT id, user_id, title, goal, location, queries, frequency, is_active, last_run_at, created_at, updated_at`).
		WithArgs("scout-1", "user-1").
		WillReturnRows(scoutRows())

	// Empty result set from the conditional insert means another execution
	// holds the running slot.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO scout_executions`).
		WithArgs("scout-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/api/scouts/scout-1/run", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("scout-1")

	err = handler.runNow(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409 while an execution is running, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
