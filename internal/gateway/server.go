package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/tourgate/internal/config"
	"github.com/nao1215/tourgate/internal/follower"
	"github.com/nao1215/tourgate/pkg/httpclient"
	"github.com/nao1215/tourgate/pkg/middleware"
	"go.uber.org/zap"
)

const (
	// Name はルートエンドポイントで返すゲートウェイ名。
	Name = "Travel Agency Gateway"
	// Version はゲートウェイのバージョン。
	Version = "1.0.0"

	// routePrefix はルート表で扱う公開パスの接頭辞。
	routePrefix = "/api/gateway"
	// contextKeyMatch はginのコンテキストに解決済みルートを格納するキー。
	contextKeyMatch = "route_match"
	// maxBodyBytes は受け付けるリクエストボディの上限。
	maxBodyBytes = 32 << 20
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 15 * time.Second
	// journalTimeout はアクセスジャーナル1件の書き込み時間の上限。
	journalTimeout = 2 * time.Second
)

// Server はゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// logger は構造化ロガー。
	logger *zap.Logger
	// dispatcher はルート表。
	dispatcher *Dispatcher
	// forwarder は下流サービスへの転送を担当する。
	forwarder *Forwarder
	// bridge はフォロー操作をRPCに変換する。
	bridge *Bridge
	// journal はアクセスジャーナルの書き込み先。
	journal Journal
	// closers は Close で解放するリソース。
	closers []func() error
}

// dependencies はサーバーが使う外部との接点。テストでは差し替える。
type dependencies struct {
	resolver EndpointResolver
	client   *httpclient.Client
	follower followerInvoker
	journal  Journal
	routes   []RouteDescriptor
}

// NewServer は設定からゲートウェイサーバーを生成する。
// フォロワーサービスへの接続は最初のRPC呼び出しまで確立しない。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	followerClient, err := follower.NewClient(cfg.FollowerGRPCAddr, cfg.RPCTimeout)
	if err != nil {
		return nil, fmt.Errorf("フォロワーサービスのクライアント生成に失敗: %w", err)
	}

	var journal Journal = nopJournal{}
	if cfg.JournalDSN != "" {
		j, err := OpenSQLiteJournal(ctx, cfg.JournalDSN, logger)
		if err != nil {
			_ = followerClient.Close()
			return nil, err
		}
		journal = j
	}

	registry := NewRegistry(cfg.Services)
	logger.Info("下流サービスを登録しました", zap.Strings("services", registry.Services()))

	client := httpclient.New(cfg.UpstreamTimeout)
	s, err := newServer(cfg, logger, dependencies{
		resolver: registry,
		client:   client,
		follower: followerClient,
		journal:  journal,
		routes:   DefaultRoutes(),
	})
	if err != nil {
		_ = followerClient.Close()
		_ = journal.Close()
		return nil, err
	}
	s.closers = append(s.closers, followerClient.Close, journal.Close, func() error {
		client.CloseIdleConnections()
		return nil
	})
	return s, nil
}

// newServer は依存を受け取ってサーバーを組み立てる。
func newServer(cfg *config.Config, logger *zap.Logger, deps dependencies) (*Server, error) {
	dispatcher, err := NewDispatcher(deps.routes)
	if err != nil {
		return nil, fmt.Errorf("ゲートウェイの構築に失敗: %w", err)
	}
	warnUnresolvedServices(logger, dispatcher, deps.resolver)

	journal := deps.journal
	if journal == nil {
		journal = nopJournal{}
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Authenticate(middleware.JWTOptions{
		Key:      cfg.JWT.Key,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}))

	s := &Server{
		router:     router,
		port:       cfg.Port,
		logger:     logger,
		dispatcher: dispatcher,
		forwarder:  NewForwarder(deps.resolver, deps.client, logger),
		bridge:     NewBridge(deps.follower, logger),
		journal:    journal,
	}
	s.setupRoutes()
	return s, nil
}

// warnUnresolvedServices はルート表が参照しているのにレジストリに無いサービスを警告する。
// 該当ルートへのリクエストは実行時に500になる。
func warnUnresolvedServices(logger *zap.Logger, d *Dispatcher, resolver EndpointResolver) {
	seen := make(map[string]bool)
	for _, rd := range d.Routes() {
		if rd.Body == BodyRPC || seen[rd.Service] {
			continue
		}
		seen[rd.Service] = true
		if _, ok := resolver.Resolve(rd.Service); !ok {
			logger.Warn("ルート表が参照するサービスのURLが設定されていません", zap.String("service", rd.Service))
		}
	}
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了したらグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ゲートウェイを起動します", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("ゲートウェイを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	return nil
}

// Close はフォロワーサービスの接続とアクセスジャーナルを閉じる。
func (s *Server) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth())
	s.router.GET("/", s.handleRoot())

	// ルート表で解決し、認可してから転送またはRPCに変換する
	s.router.Any(routePrefix+"/*path",
		s.recordJournal(),
		s.resolveRoute(),
		middleware.AuthorizeWith(denyAccess),
		s.dispatch(),
	)

	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, newError(KindRouteNotFound, fmt.Errorf("%s %s", c.Request.Method, c.Request.URL.Path)))
	})
}

// handleHealth は稼働確認のハンドラを返す。下流サービスには問い合わせない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	}
}

// handleRoot はゲートウェイの情報と公開エンドポイントの一覧を返すハンドラを返す。
func (s *Server) handleRoot() gin.HandlerFunc {
	endpoints := gin.H{"health": "/healthz"}
	for _, rd := range s.dispatcher.Routes() {
		first, _, _ := strings.Cut(strings.TrimPrefix(rd.Pattern, "/"), "/")
		endpoints[first] = routePrefix + "/" + first + "/*"
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        Name,
			"version":     Version,
			"description": "旅行代理店プラットフォームのAPIゲートウェイ",
			"endpoints":   endpoints,
		})
	}
}

// resolveRoute はルート表からルートを解決し、認可ポリシーをコンテキストに設定する。
func (s *Server) resolveRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Param("path")
		match, ok := s.dispatcher.Resolve(c.Request.Method, path)
		if !ok {
			writeError(c, newError(KindRouteNotFound, fmt.Errorf("%s %s", c.Request.Method, path)))
			return
		}
		c.Set(contextKeyMatch, match)
		middleware.SetPolicy(c, match.Route.Policy)
		c.Next()
	}
}

// getMatch はコンテキストから解決済みルートを取得する。
func getMatch(c *gin.Context) *Match {
	v, ok := c.Get(contextKeyMatch)
	if !ok {
		return nil
	}
	m, _ := v.(*Match)
	return m
}

// dispatch は認可済みのリクエストを下流サービスに転送する。
func (s *Server) dispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		match := getMatch(c)
		if match == nil {
			writeError(c, newError(KindRouteNotFound, errors.New("ルートが解決されていません")))
			return
		}
		route := match.Route
		principal := middleware.GetPrincipal(c)

		if route.Body == BodyRPC {
			s.handleFollowAction(c, match)
			return
		}

		callerID := ""
		if principal != nil {
			callerID = principal.UserIDString()
		}

		targetURL, err := s.forwarder.TargetURL(route.Service,
			match.TargetPath(callerID),
			forwardQuery(c.Request.URL.RawQuery, route.CallerQuery, callerID))
		if err != nil {
			s.logger.Error("ルートが指すサービスがレジストリにありません",
				zap.String("service", route.Service),
				zap.String("route", route.Pattern),
			)
			writeError(c, err)
			return
		}

		env := ForwardEnvelope{
			Method:       route.Method,
			TargetURL:    targetURL,
			ExtraHeaders: make(map[string]string),
		}
		if route.Policy.RequiresAuth {
			env.BearerToken = middleware.GetToken(c)
		}
		if route.InjectCallerID {
			env.ExtraHeaders[headerUserID] = callerID
		}
		if requestID := middleware.GetRequestID(c); requestID != "" {
			env.ExtraHeaders[middleware.HeaderRequestID] = requestID
		}

		if route.Body != BodyNone {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		switch route.Body {
		case BodyJSON:
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				writeError(c, bodyError(err))
				return
			}
			env.Body = body
			env.ContentType = c.GetHeader("Content-Type")
		case BodyMultipart:
			body, contentType, err := rebuildMultipart(c.Request)
			if err != nil {
				writeError(c, err)
				return
			}
			env.Body = body
			env.ContentType = contentType
		}

		resp, err := s.forwarder.Forward(c.Request.Context(), env)
		if err != nil {
			writeError(c, err)
			return
		}
		relayResponse(c, resp)
	}
}

// handleFollowAction はフォロー操作をフォロワーサービスのRPCとして実行する。
// フォローする側は認証済みの呼び出し元、される側はパスの {id}。
func (s *Server) handleFollowAction(c *gin.Context, match *Match) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		writeError(c, newError(KindUnauthenticated, nil))
		return
	}
	targetID, err := strconv.ParseInt(match.Params["id"], 10, 64)
	if err != nil {
		writeError(c, newError(KindInvalidRequest, fmt.Errorf("IDが不正: %w", err)))
		return
	}

	ctx := follower.WithCallMetadata(c.Request.Context(), middleware.GetToken(c), middleware.GetRequestID(c))
	result, err := s.bridge.FollowAction(ctx, match.Route.Action, principal.UserID, targetID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// recordJournal はルートが解決されたリクエストをアクセスジャーナルに記録する。
// 記録に失敗してもレスポンスは変えない。
func (s *Server) recordJournal() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		match := getMatch(c)
		if match == nil {
			return
		}
		entry := Entry{
			RequestID:  middleware.GetRequestID(c),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Route:      match.Route.Pattern,
			Service:    match.Route.Service,
			Status:     c.Writer.Status(),
			Duration:   time.Since(start),
			RecordedAt: start,
		}
		if p := middleware.GetPrincipal(c); p != nil {
			entry.CallerID = p.UserID
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), journalTimeout)
		defer cancel()
		if err := s.journal.Record(ctx, entry); err != nil {
			s.logger.Warn("アクセスジャーナルの記録に失敗しました",
				zap.String("request_id", entry.RequestID),
				zap.Error(err),
			)
		}
	}
}
