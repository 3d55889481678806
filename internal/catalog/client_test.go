package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{URL: server.URL}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestFetchWatchlist(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections/watchlist/all" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get(tokenHeader) != "tok1" {
			t.Errorf("token header = %q", r.Header.Get(tokenHeader))
		}
		w.Write([]byte(`{"MediaContainer":{"size":3,"Metadata":[
			{"guid":"catalog://m/1","ratingKey":"rk1","title":"Blade Runner","year":2049,"type":"movie"},
			{"guid":"catalog://s/2","ratingKey":"rk2","title":"Some Show","year":2020,"type":"show"},
			{"ratingKey":"rk3","title":"No Guid","year":2021,"type":"movie"}
		]}}`))
	})

	entries, err := client.FetchWatchlist(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("FetchWatchlist: %v", err)
	}
	// the guid-less entry is dropped
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].GUID != "catalog://m/1" || entries[0].Kind != KindMovie || entries[0].Year != 2049 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Kind != KindShow {
		t.Errorf("entry 1 kind = %q", entries[1].Kind)
	}
}

func TestFetchWatchlistAuthRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.FetchWatchlist(context.Background(), "bad-token")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestExistsInLibrary(t *testing.T) {
	size := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/all" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("guid") != "catalog://m/1" {
			t.Errorf("guid = %q", r.URL.Query().Get("guid"))
		}
		fmt.Fprintf(w, `{"MediaContainer":{"size":%d}}`, size)
	})

	entry := WatchlistEntry{GUID: "catalog://m/1"}

	exists, err := client.ExistsInLibrary(context.Background(), "tok1", entry)
	if err != nil || exists {
		t.Errorf("size 0: exists=%v err=%v", exists, err)
	}

	size = 1
	exists, err = client.ExistsInLibrary(context.Background(), "tok1", entry)
	if err != nil || !exists {
		t.Errorf("size 1: exists=%v err=%v", exists, err)
	}

	size = 2
	exists, err = client.ExistsInLibrary(context.Background(), "tok1", entry)
	if err != nil || exists {
		t.Errorf("size 2: exists=%v err=%v", exists, err)
	}
}

func TestWatchlistActions(t *testing.T) {
	var gotPath, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("ratingKey")
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	if err := client.RemoveFromWatchlist(ctx, "tok1", "rk1"); err != nil {
		t.Fatalf("RemoveFromWatchlist: %v", err)
	}
	if gotPath != "/actions/removeFromWatchlist" || gotKey != "rk1" {
		t.Errorf("remove: path=%q key=%q", gotPath, gotKey)
	}

	if err := client.AddToWatchlist(ctx, "tok1", "rk2"); err != nil {
		t.Fatalf("AddToWatchlist: %v", err)
	}
	if gotPath != "/actions/addToWatchlist" || gotKey != "rk2" {
		t.Errorf("add: path=%q key=%q", gotPath, gotKey)
	}
}

func TestAccountInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/user" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"username":"alice","uuid":"u-1"}`))
	})

	info, err := client.AccountInfo(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("AccountInfo: %v", err)
	}
	if info.Username != "alice" || info.UUID != "u-1" {
		t.Errorf("info = %+v", info)
	}
}
