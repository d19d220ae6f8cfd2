// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/middleware"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/dskhairnar/backend-acme/internal/security"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// dateLayout は日付のみの入力形式。
const dateLayout = "2006-01-02"

// plainText は自由記述フィールドからマークアップを除去する。
var plainText security.TextSanitizer = security.NewTextSanitizer()

// cleanText は保存前の自由記述テキストを正規化する。
func cleanText(s string) string {
	return plainText.Sanitize(s)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーをエンベロープに変換する。
// APIError以外は内部エラーとしてログに記録し、詳細はクライアントに返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		response.Error(w, apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	response.Internal(w)
}

// currentPrincipal はコンテキストの認証済みプリンシパルを返す。
// 認証ミドルウェアの外で呼ばれた場合はNO_TOKENを書き込む。
func currentPrincipal(w http.ResponseWriter, r *http.Request) (*model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, model.NewNoTokenError())
		return nil, false
	}
	return p, true
}

// parseTimestamp はRFC3339形式または日付のみの文字列を解析する。
// 日付のみの場合はUTCの0時として扱い、dateOnlyにtrueを返す。
func parseTimestamp(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d.UTC(), true, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// fieldErrors はフィールド単位のバリデーションエラーを蓄積する。
type fieldErrors map[string]string

func (fe fieldErrors) add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// timestamp は必須の日時フィールドを解析する。
func (fe fieldErrors) timestamp(field, value string) time.Time {
	if strings.TrimSpace(value) == "" {
		fe.add(field, "is required")
		return time.Time{}
	}
	t, _, err := parseTimestamp(value)
	if err != nil {
		fe.add(field, "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	return t
}

// optionalTimestamp は任意の日時フィールドを解析する。未指定の場合はnilを返す。
func (fe fieldErrors) optionalTimestamp(field string, value *string) *time.Time {
	if value == nil {
		return nil
	}
	t := fe.timestamp(field, *value)
	if _, failed := fe[field]; failed {
		return nil
	}
	return &t
}

func (fe fieldErrors) maxLen(field, value string, n int) {
	if len([]rune(value)) > n {
		fe.add(field, "must be at most "+strconv.Itoa(n)+" characters")
	}
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return model.NewValidationError(fe)
}

// nullableString はJSONのキー未指定とnullを区別する文字列。
type nullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
