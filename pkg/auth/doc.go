// Package auth はゲートウェイの認可判定に使う呼び出し元の型とポリシー評価を提供する。
//
// トークンからのクレーム抽出（ExtractPrincipal）は署名検証を行わない。
// 署名と有効期限の検証はルーティング前段の認証ミドルウェアが一度だけ行う。
package auth
