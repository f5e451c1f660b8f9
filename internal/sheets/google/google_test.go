package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cognita/internal/core"
)

func sampleTransaction() core.FinanceTransaction {
	return core.FinanceTransaction{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Type:            core.Expense,
		Amount:          decimal.RequireFromString("12.5"),
		Category:        "Food",
		Description:     "lunch",
		TransactionDate: time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/non/existent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_ExportTransactionValidates(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	tx := sampleTransaction()
	tx.Category = ""
	if _, err := c.ExportTransaction(context.Background(), tx); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.ExportTransaction(context.Background(), sampleTransaction()); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}

func TestClient_ExportTransactionAppendsRow(t *testing.T) {
	var (
		gotPath string
		gotBody gsheet.ValueRange
		gotOpt  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOpt = r.URL.Query().Get("valueInputOption")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"Finances!A7:E7","updatedRows":1}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	c := NewWithService(svc, "sheet-id", "Finances")

	ref, err := c.ExportTransaction(context.Background(), sampleTransaction())
	if err != nil {
		t.Fatalf("ExportTransaction: %v", err)
	}
	if ref != "Finances!A7:E7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotOpt != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", gotOpt)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 5 {
		t.Fatalf("unexpected body %+v", gotBody.Values)
	}
	want := []string{"2025-03-11", "expense", "Food", "lunch", "12.50"}
	for i, w := range want {
		if gotBody.Values[0][i] != w {
			t.Errorf("cell %d = %v, want %s", i, gotBody.Values[0][i], w)
		}
	}
}

func TestClient_ExportTransactionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = NewWithService(svc, "sheet-id", "").ExportTransaction(context.Background(), sampleTransaction())
	if err == nil || !strings.Contains(err.Error(), "append to sheet Finances") {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}
