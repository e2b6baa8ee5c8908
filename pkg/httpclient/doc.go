// Package httpclient はゲートウェイから下流サービスへHTTPリクエストを転送するクライアントを提供する。
//
// 接続はサービスをまたいで共有され、下流のステータスコード・ヘッダー・ボディを
// 解釈せずにそのまま呼び出し元へ返す。4xxや5xxはエラーとして扱わない。
package httpclient
