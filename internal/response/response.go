// Package response は全エンドポイント共通のJSONエンベロープを書き込む。
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

// TimestampFormat はエンベロープのtimestampの形式（ミリ秒精度のUTC ISO-8601）。
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Envelope はレスポンスの統一フォーマット。
// 失敗時はerrorにエラーコード、detailsにフィールド単位のエラーを格納する。
type Envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       any               `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

// now はテストで差し替え可能な現在時刻。
var now = time.Now

// Timestamp は現在時刻をエンベロープの形式で返す。
func Timestamp() string {
	return now().UTC().Format(TimestampFormat)
}

// OK は成功レスポンスを書き込む。
func OK(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// List はページング情報付きの一覧レスポンスを書き込む。
func List(w http.ResponseWriter, message string, data any, p model.Pagination) {
	write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Pagination: &p})
}

// Error はAPIエラーをKindに対応するHTTPステータスで書き込む。
func Error(w http.ResponseWriter, apiErr *model.APIError) {
	write(w, StatusFor(apiErr.Kind), Envelope{
		Message: apiErr.Message,
		Error:   apiErr.Code,
		Details: apiErr.Details,
	})
}

// ErrorWithStatus はAPIエラーを指定のHTTPステータスで書き込む。
func ErrorWithStatus(w http.ResponseWriter, status int, apiErr *model.APIError) {
	write(w, status, Envelope{
		Message: apiErr.Message,
		Error:   apiErr.Code,
		Details: apiErr.Details,
	})
}

// Internal は内部エラーの汎用レスポンスを書き込む。詳細はクライアントに返さない。
func Internal(w http.ResponseWriter) {
	Error(w, model.NewInternalError())
}

// StatusFor はエラー種別をHTTPステータスに変換する。
func StatusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, env Envelope) {
	env.Timestamp = Timestamp()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
