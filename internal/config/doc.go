// Package config はゲートウェイの設定を読み込む。
//
// 既定値、YAMLファイル（GATEWAY_CONFIG）、環境変数の順に上書きし、
// 起動時に一度だけ不変のConfigを組み立てる。リクエスト処理中に環境変数を読むことはない。
package config
