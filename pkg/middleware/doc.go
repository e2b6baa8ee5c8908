// Package middleware はゲートウェイのGinミドルウェアを提供する。
//
// JWT認証トークンの検証、ルートポリシーによる認可、リクエストIDの付与、
// リクエストログ、パニックリカバリ、CORS設定を含む。
package middleware
