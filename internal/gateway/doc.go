// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として機能する。
// /api/gateway/ 以下の全リクエストをルート表で解決し、ルートごとのポリシーで認可したうえで
// 下流サービスへHTTPで転送する。ブログの作成・更新はmultipartを組み立て直して転送し、
// フォロー操作だけはフォロワーサービスのgRPC呼び出しに変換する。
//
// 下流のステータスコードとボディは解釈せずにそのまま返す。ゲートウェイ自身が返すエラーは
// 常に {"message": "..."} 形式で、内部情報を含まない。
package gateway
