package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

func newTestClient(endpoint string) ListingClient {
	return New(resty.New(), ratelimit.NewUnlimited(), endpoint, nil)
}

func TestSearchPostsSearchField(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"publications":[{"id":123,"title":"Dogs Monthly","pages":{"count":4,"url":"http://img/%d.jpg"}}],"total":7}`))
	}))
	defer srv.Close()

	listing, err := newTestClient("").Search(context.Background(), srv.URL, "dogs", 2, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotForm["search"] != "dogs" {
		t.Errorf("search field = %q, want %q", gotForm["search"], "dogs")
	}
	if gotForm["page"] != "2" {
		t.Errorf("page field = %q, want %q", gotForm["page"], "2")
	}
	if _, ok := gotForm["size"]; ok {
		t.Errorf("size field sent for size 0: %q", gotForm["size"])
	}

	if listing.Total != 7 {
		t.Errorf("Total = %d, want 7", listing.Total)
	}
	if len(listing.Publications) != 1 {
		t.Fatalf("got %d publications, want 1", len(listing.Publications))
	}
	pub := listing.Publications[0]
	if pub.ID.String() != "123" {
		t.Errorf("ID = %q, want %q (numeric id must decode)", pub.ID, "123")
	}
	if pub.Pages.Count != 4 {
		t.Errorf("Pages.Count = %d, want 4", pub.Pages.Count)
	}
	if got := pub.PageURL(3); got != "http://img/3.jpg" {
		t.Errorf("PageURL(3) = %q, want %q", got, "http://img/3.jpg")
	}
}

func TestListPostsURLField(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"url":  r.PostForm.Get("url"),
			"size": r.PostForm.Get("size"),
		}
		w.Write([]byte(`{"publications":[],"total":0}`))
	}))
	defer srv.Close()

	if _, err := newTestClient("").List(context.Background(), srv.URL, "http://pub/x", 0, 25); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if gotForm["url"] != "http://pub/x" {
		t.Errorf("url field = %q, want %q", gotForm["url"], "http://pub/x")
	}
	if gotForm["size"] != "25" {
		t.Errorf("size field = %q, want %q", gotForm["size"], "25")
	}
}

func TestQueryBackendErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"source unavailable"}`))
	}))
	defer srv.Close()

	_, err := newTestClient("").Search(context.Background(), srv.URL, "dogs", 0, 0)
	var le *ListingError
	if !errors.As(err, &le) {
		t.Fatalf("expected *ListingError, got %T: %v", err, err)
	}
	if le.Term != "dogs" {
		t.Errorf("Term = %q, want %q", le.Term, "dogs")
	}
	if !strings.Contains(le.Detail, "source unavailable") || !strings.Contains(le.Detail, "500") {
		t.Errorf("Detail = %q, want backend message and status", le.Detail)
	}
}

func TestQueryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient("").List(context.Background(), srv.URL, "x", 0, 0)
	var le *ListingError
	if !errors.As(err, &le) {
		t.Fatalf("expected *ListingError, got %T: %v", err, err)
	}
	if le.Detail != "malformed response" {
		t.Errorf("Detail = %q, want %q", le.Detail, "malformed response")
	}
}

func TestServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Write([]byte(`[{"name":"Alpha","url":"http://alpha/api","search":true},{"name":"Beta","url":"http://beta/api"}]`))
	}))
	defer srv.Close()

	services, err := newTestClient(srv.URL).Services(context.Background())
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2", len(services))
	}
	if services[0].Name != "Alpha" || !services[0].Search {
		t.Errorf("first service = %+v", services[0])
	}
	if services[1].Search {
		t.Errorf("second service should not support search: %+v", services[1])
	}
}

func TestServicesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Services(context.Background())
	var ce *CatalogError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CatalogError, got %T: %v", err, err)
	}
	if !strings.Contains(ce.Detail, "502") {
		t.Errorf("Detail = %q, want status 502", ce.Detail)
	}
}
