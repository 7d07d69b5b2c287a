package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/api"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/notify"
	"github.com/Kerhoff/academybot/internal/repository/sqlstore"
	"github.com/Kerhoff/academybot/internal/service"
	"github.com/Kerhoff/academybot/internal/testutil"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewSQLite(t)
	logger := testutil.Logger()
	loc := time.FixedZone("UZT", 5*60*60)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, loc)

	dispatcher := notify.NewDispatcher(&testutil.Sender{}, sqlstore.NewDirectory(db), logger, loc)
	svc := service.New(db, logger, sqlstore.New(db), auth.NewGate(), dispatcher, service.Options{
		Location: loc,
		AdminIDs: map[int64]bool{1: true},
		Now:      func() time.Time { return now },
	})

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	head, err := svc.EnsureHeadTrainer(ctx, service.Profile{TelegramID: 1})
	must(err)
	branch, err := svc.CreateBranch(ctx, head, "North", nil)
	must(err)
	_, err = svc.CreateTrainer(ctx, head, "Alex Stone", branch.ID)
	must(err)
	trainer, err := svc.Register(ctx, service.Registration{
		Profile: service.Profile{TelegramID: 2}, Role: models.RoleTrainer, FullName: "Alex Stone",
	})
	must(err)
	parent, err := svc.Register(ctx, service.Registration{
		Profile: service.Profile{TelegramID: 3}, Role: models.RoleParent, FullName: "Pat Doe",
	})
	must(err)
	group, err := svc.CreateGroup(ctx, head, "U10", branch.ID, trainer.Trainer.ID)
	must(err)
	child, err := svc.CreateChild(ctx, head, "Kim", parent.User.ID, group.ID)
	must(err)
	_, err = svc.RecordPayment(ctx, trainer, child.ID, decimal.NewFromInt(150000), "2025-03")
	must(err)

	srv := httptest.NewServer(api.NewServer(svc, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestEndpoints(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "health", path: "/healthz", status: http.StatusOK},
		{name: "metrics", path: "/metrics", status: http.StatusOK},
		{name: "finance", path: "/api/finance", status: http.StatusOK},
		{name: "daily report today", path: "/api/report/daily", status: http.StatusOK},
		{name: "daily report by date", path: "/api/report/daily?date=2025-03-09", status: http.StatusOK},
		{name: "bad date", path: "/api/report/daily?date=09.03.2025", status: http.StatusBadRequest},
		{name: "unknown path", path: "/api/todos", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.status)
			}
		})
	}
}

func TestFinanceTotals(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/api/finance")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		WithTrainer decimal.Decimal `json:"with_trainer"`
		InCashbox   decimal.Decimal `json:"in_cashbox"`
		Total       decimal.Decimal `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.WithTrainer.Equal(decimal.NewFromInt(150000)) || !body.InCashbox.IsZero() {
		t.Fatalf("totals = %+v", body)
	}
	if !body.Total.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("total = %s", body.Total)
	}
}
