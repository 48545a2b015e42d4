package norms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("GRD,Peso,PCI,PCS\nG1,\"1,2\",2,8\n"))
	}))
	defer srv.Close()

	rows, err := NewHTTPSource(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 1 || rows[0]["GRD"] != "G1" || rows[0]["Peso"] != "1,2" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestHTTPSource_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewHTTPSource(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error on 404")
	}
}
