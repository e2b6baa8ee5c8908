package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client はサービス間通信用のHTTPクライアント。
// 1つのインスタンスを全ての下流サービスで共有する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
}

// Request は転送するHTTPリクエスト。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// URL は転送先の完全なURL。
	URL string
	// Body はリクエストボディ。nilの場合はボディを送らない。
	Body []byte
	// Header は転送時に付与するヘッダー。
	Header http.Header
}

// Response は下流サービスのレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ全体。
	Body []byte
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// timeoutが0の場合はタイムアウトを設定しない。
func New(timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			// リダイレクトは追跡せず、そのまま呼び出し元へ返す
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do はリクエストを送信し、レスポンス全体を読み込んで返す。
// エラーを返すのは接続失敗やタイムアウトなど、レスポンスを得られなかった場合のみ。
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CloseIdleConnections はアイドル状態の接続を閉じる。
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// IsTimeout はエラーがタイムアウトによるものかどうかを判定する。
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
