package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Query はクエリ文字列。
	Query string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New(30 * time.Second)
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.httpClient == nil {
			t.Fatal("httpClientがnil")
		}
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("タイムアウト0の場合は無制限になること", func(t *testing.T) {
		t.Parallel()

		client := New(0)
		if client.httpClient.Timeout != 0 {
			t.Errorf("Timeout = %v, want 0", client.httpClient.Timeout)
		}
	})
}

// TestDo はDo関数を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・パス・ヘッダー・ボディがそのまま転送されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Query = r.URL.RawQuery
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":42}`))
		}))
		defer ts.Close()

		header := http.Header{}
		header.Set("Authorization", "Bearer abc")
		header.Set("Content-Type", "application/json")

		resp, err := New(5*time.Second).Do(context.Background(), Request{
			Method: http.MethodPost,
			URL:    ts.URL + "/api/tours?page=2",
			Body:   []byte(`{"name":"Fruška gora"}`),
			Header: header,
		})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/api/tours" {
			t.Errorf("Path = %q, want %q", received.Path, "/api/tours")
		}
		if received.Query != "page=2" {
			t.Errorf("Query = %q, want %q", received.Query, "page=2")
		}
		if string(received.Body) != `{"name":"Fruška gora"}` {
			t.Errorf("Body = %q", received.Body)
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
		}

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if string(resp.Body) != `{"id":42}` {
			t.Errorf("レスポンスボディ = %q, want %q", resp.Body, `{"id":42}`)
		}
		if got := resp.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
	})

	t.Run("4xxや5xxはエラーにせずそのまま返ること", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"upstream"}`))
			}))

			resp, err := New(5*time.Second).Do(context.Background(), Request{Method: http.MethodGet, URL: ts.URL})
			ts.Close()
			if err != nil {
				t.Fatalf("status=%d: Do()でエラーが発生: %v", status, err)
			}
			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, status)
			}
			if string(resp.Body) != `{"error":"upstream"}` {
				t.Errorf("レスポンスボディ = %q", resp.Body)
			}
		}
	})

	t.Run("ボディがnilの場合はボディを送らないこと", func(t *testing.T) {
		t.Parallel()

		var contentLength int64 = -2
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentLength = r.ContentLength
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		resp, err := New(5*time.Second).Do(context.Background(), Request{Method: http.MethodDelete, URL: ts.URL})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
		if contentLength != 0 {
			t.Errorf("ContentLength = %d, want 0", contentLength)
		}
	})

	t.Run("リダイレクトは追跡せずそのまま返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		}))
		defer ts.Close()

		resp, err := New(5*time.Second).Do(context.Background(), Request{Method: http.MethodGet, URL: ts.URL})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		if got := resp.Header.Get("Location"); got != "/elsewhere" {
			t.Errorf("Location = %q, want %q", got, "/elsewhere")
		}
	})

	t.Run("接続できない場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		url := ts.URL
		ts.Close()

		_, err := New(5*time.Second).Do(context.Background(), Request{Method: http.MethodGet, URL: url})
		if err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if IsTimeout(err) {
			t.Errorf("接続拒否がタイムアウトと判定された: %v", err)
		}
	})

	t.Run("タイムアウトした場合はIsTimeoutがtrueになること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		_, err := New(50*time.Millisecond).Do(context.Background(), Request{Method: http.MethodGet, URL: ts.URL})
		if err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if !IsTimeout(err) {
			t.Errorf("IsTimeout() = false, want true: %v", err)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		_, err := New(5*time.Second).Do(ctx, Request{Method: http.MethodGet, URL: ts.URL})
		if err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("エラー = %v, want context.Canceled", err)
		}
	})
}

// TestIsTimeout はIsTimeout関数を検証する。
func TestIsTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nilはタイムアウトではない", err: nil, want: false},
		{name: "DeadlineExceededはタイムアウト", err: context.DeadlineExceeded, want: true},
		{name: "ラップされたDeadlineExceededもタイムアウト", err: errors.Join(errors.New("x"), context.DeadlineExceeded), want: true},
		{name: "通常のエラーはタイムアウトではない", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
