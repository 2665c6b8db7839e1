package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/johnrirwin/newsradar/internal/ratelimit"
)

func TestRedditFetcher_Fetch(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, `{"data":{"children":[
			{"data":{"id":"p1","title":"Fed minutes released","selftext":"","author":"a","url":"https://news.example.com/fed","permalink":"/r/economics/comments/p1/","created_utc":1717408800}},
			{"data":{"id":"p2","title":"Weekly discussion","stickied":true,"permalink":"/r/economics/comments/p2/","created_utc":1717408800}},
			{"data":{"id":"p3","title":"Why are yields up?","selftext":"Asking   about bonds","author":"b","permalink":"/r/economics/comments/p3/","created_utc":1717412400}}
		]}}`)
	}))
	defer srv.Close()

	f := NewRedditFetcher("economics", ratelimit.New(time.Millisecond), DefaultConfig())
	f.baseURL = srv.URL

	articles, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if path != "/r/economics/hot.json" {
		t.Errorf("request path = %q", path)
	}
	if len(articles) != 2 {
		t.Fatalf("Fetch() returned %d articles, want 2 (stickied dropped)", len(articles))
	}
	if articles[0].URL != "https://news.example.com/fed" {
		t.Errorf("link post URL = %q", articles[0].URL)
	}
	if articles[1].URL != srv.URL+"/r/economics/comments/p3/" {
		t.Errorf("self post URL = %q", articles[1].URL)
	}
	if articles[1].Content != "Asking about bonds" {
		t.Errorf("self post content = %q", articles[1].Content)
	}
	if articles[0].Source != "r/economics" {
		t.Errorf("Source = %q", articles[0].Source)
	}
	if !articles[0].PublishedAt.Equal(time.Unix(1717408800, 0)) {
		t.Errorf("PublishedAt = %v", articles[0].PublishedAt)
	}
}

func TestRedditFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewRedditFetcher("economics", ratelimit.New(time.Millisecond), DefaultConfig())
	f.baseURL = srv.URL
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() expected error on 429")
	}
}
