package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientGetSendsHeadersAndRawQuery(t *testing.T) {
	const rawQuery = "query=*%5B_type%20%3D%3D%20%22post%22%5D"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.RawQuery != rawQuery {
			t.Errorf("raw query = %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL+"/v1?"+rawQuery, map[string]string{"Authorization": "Bearer tok"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if string(resp.Body()) != `{"ok":true}` {
		t.Fatalf("body = %s", resp.Body())
	}
	if resp.Header().Get("X-Trace") != "abc" {
		t.Fatalf("missing response header")
	}
}

func TestThrottledRestyClientStillServesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewThrottledRestyClient(2*time.Second, 100, 2)
	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), srv.URL, nil)
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		if resp.StatusCode() != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode())
		}
	}
}
