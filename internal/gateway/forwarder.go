package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/tourgate/pkg/httpclient"
	"go.uber.org/zap"
)

// headerUserID は下流サービスに呼び出し元のIDを伝えるヘッダー。
const headerUserID = "X-User-Id"

// relayedHeaders は下流のレスポンスから呼び出し元へ引き継ぐヘッダー。
// Content-Type は本文と一緒に設定する。
var relayedHeaders = []string{
	"Location",
	"Content-Disposition",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// ForwardEnvelope は1回の転送に必要な情報。リクエストごとに生成し、共有しない。
type ForwardEnvelope struct {
	// Method はHTTPメソッド。
	Method string
	// TargetURL は転送先の絶対URL。
	TargetURL string
	// Body はリクエストボディ。POST/PUT/PATCH で空でない場合だけ送る。
	Body []byte
	// ContentType はBodyのContent-Type。空の場合は application/json。
	ContentType string
	// BearerToken は転送するトークン。空の場合は Authorization を付けない。
	BearerToken string
	// ExtraHeaders はゲートウェイが付与するヘッダー。
	ExtraHeaders map[string]string
}

// Forwarder は下流サービスへHTTPリクエストを転送する。
type Forwarder struct {
	resolver EndpointResolver
	client   *httpclient.Client
	logger   *zap.Logger
}

// NewForwarder は新しいForwarderを生成する。
func NewForwarder(resolver EndpointResolver, client *httpclient.Client, logger *zap.Logger) *Forwarder {
	return &Forwarder{resolver: resolver, client: client, logger: logger}
}

// TargetURL はサービスのベースURLとパスを連結した絶対URLを返す。
// サービスがレジストリに無い場合は KindUnknownService のエラーを返す。
func (f *Forwarder) TargetURL(service, path, rawQuery string) (string, error) {
	baseURL, ok := f.resolver.Resolve(service)
	if !ok {
		return "", newError(KindUnknownService, fmt.Errorf("サービス %q がレジストリにありません", service))
	}
	return joinURL(baseURL, path, rawQuery), nil
}

// Forward はリクエストを1回だけ送信する。再試行はしない。
// 下流が4xxや5xxを返してもエラーにはせず、そのままレスポンスを返す。
func (f *Forwarder) Forward(ctx context.Context, env ForwardEnvelope) (*httpclient.Response, error) {
	header := make(http.Header)
	var body []byte
	if methodCarriesBody(env.Method) && len(env.Body) > 0 {
		body = env.Body
		contentType := env.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		header.Set("Content-Type", contentType)
	}
	if env.BearerToken != "" {
		header.Set("Authorization", "Bearer "+env.BearerToken)
	}
	for name, value := range env.ExtraHeaders {
		header.Set(name, value)
	}

	start := time.Now()
	resp, err := f.client.Do(ctx, httpclient.Request{
		Method: env.Method,
		URL:    env.TargetURL,
		Body:   body,
		Header: header,
	})
	if err != nil {
		kind := KindUpstreamUnreachable
		if httpclient.IsTimeout(err) {
			kind = KindUpstreamTimeout
		}
		f.logger.Warn("下流サービスへの転送に失敗しました",
			zap.String("method", env.Method),
			zap.String("url", env.TargetURL),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
		return nil, newError(kind, err)
	}

	f.logger.Debug("下流サービスからレスポンスを受信しました",
		zap.String("method", env.Method),
		zap.String("url", env.TargetURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// joinURL はベースURLとパスを区切りの重複や欠落が無いように連結する。
func joinURL(baseURL, path, rawQuery string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// forwardQuery は受信したクエリを引き継ぐ。paramが指定されていれば呼び出し元のIDで上書きする。
func forwardQuery(rawQuery, param, callerID string) string {
	if param == "" {
		return rawQuery
	}
	// 解析できない組は捨て、解析できた組だけを引き継ぐ
	q, _ := url.ParseQuery(rawQuery)
	q.Set(param, callerID)
	return q.Encode()
}

// relayResponse は下流のレスポンスをステータスコードとボディを変えずに返す。
func relayResponse(c *gin.Context, resp *httpclient.Response) {
	for _, name := range relayedHeaders {
		for _, v := range resp.Header.Values(name) {
			c.Writer.Header().Add(name, v)
		}
	}

	if len(resp.Body) == 0 {
		c.Status(resp.StatusCode)
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}
