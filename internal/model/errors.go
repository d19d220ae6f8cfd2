// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はAPIエラーの分類を表す。HTTPステータスへの変換はhandler層で行う。
type ErrorKind string

const (
	// KindUnauthenticated はトークン未提示・無効・期限切れ、またはユーザーが存在しないことを示す。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindForbidden はロールまたは所有者チェックで拒否されたことを示す。
	KindForbidden ErrorKind = "forbidden"
	// KindNotFound はリソースが存在しない、または他ユーザーの所有であることを示す。
	KindNotFound ErrorKind = "not_found"
	// KindConflict は自然キーの重複を示す。
	KindConflict ErrorKind = "conflict"
	// KindValidation は入力値の形式・範囲エラーを示す。
	KindValidation ErrorKind = "validation_failed"
	// KindRateLimited はレート制限超過を示す。
	KindRateLimited ErrorKind = "rate_limited"
	// KindInternal は永続化層などの予期しない障害を示す。
	KindInternal ErrorKind = "internal"
)

// APIError は統一エラーフォーマットを表す。
// Detailsにはフィールド単位のバリデーションエラーを格納する。
type APIError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNoToken            = "NO_TOKEN"
	ErrCodeTokenInvalid       = "TOKEN_INVALID"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenRevoked       = "TOKEN_REVOKED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailInUse         = "EMAIL_IN_USE"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDuplicateEntry     = "DUPLICATE_ENTRY"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewNoTokenError はトークン未提示エラーを生成する。
func NewNoTokenError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeNoToken,
		Message: "Access denied. No token provided.",
	}
}

// NewTokenInvalidError は不正なトークンのエラーを生成する。再ログインが必要。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeTokenInvalid,
		Message: "Invalid token. Please log in again.",
	}
}

// NewTokenExpiredError は期限切れトークンのエラーを生成する。リフレッシュで回復できる。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeTokenExpired,
		Message: "Token expired. Please refresh your token.",
	}
}

// NewTokenRevokedError は失効済みトークンのエラーを生成する。
func NewTokenRevokedError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeTokenRevoked,
		Message: "Token has been revoked. Please log in again.",
	}
}

// NewUserGoneError はトークン発行後にユーザーが削除された場合のエラーを生成する。
func NewUserGoneError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeUserNotFound,
		Message: "The user belonging to this token no longer exists.",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
// どちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid email or password.",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Kind:    KindConflict,
		Code:    ErrCodeEmailInUse,
		Message: "A user with this email already exists.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	if message == "" {
		message = "You do not have permission to perform this action."
	}
	return &APIError{
		Kind:    KindForbidden,
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
// 他ユーザー所有のリソースにも同じエラーを返し、存在を漏らさない。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found.", resource),
	}
}

// NewDuplicateEntryError は自然キー重複エラーを生成する。
func NewDuplicateEntryError(message string) *APIError {
	return &APIError{
		Kind:    KindConflict,
		Code:    ErrCodeDuplicateEntry,
		Message: message,
	}
}

// NewValidationError はフィールド単位のバリデーションエラーを生成する。
func NewValidationError(details map[string]string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeValidation,
		Message: "Validation failed.",
		Details: details,
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidRequest,
		Message: "Request body must be valid JSON.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Kind:    KindRateLimited,
		Code:    ErrCodeRateLimited,
		Message: "Too many requests. Please try again later.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Kind:    KindInternal,
		Code:    ErrCodeInternal,
		Message: "An internal error occurred. Please try again later.",
	}
}
