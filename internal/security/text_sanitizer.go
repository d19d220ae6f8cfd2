// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力する自由記述テキスト（メモ、薬剤名、追跡番号など）から
// HTMLマークアップを除去する。保存される値はプレーンテキストとなり、
// ダッシュボード側で描画された場合もスクリプトが実行されない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleタグは中身ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// plainTextSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、単一インスタンスを共有できる。
type plainTextSanitizer struct {
	policy *bluemonday.Policy
}

var _ TextSanitizer = (*plainTextSanitizer)(nil)

// NewTextSanitizer はタグを一切許可しないTextSanitizerを生成する。
func NewTextSanitizer() *plainTextSanitizer {
	return &plainTextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はプレーンテキストを返す。
// bluemondayの出力はHTMLエスケープされているため、保存用に元の文字へ戻す。
func (s *plainTextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
