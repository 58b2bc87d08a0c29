package models

// ErrorDetail - код и сообщение ошибки.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse - стандартный JSON ответ об ошибке.
type ErrorResponse struct {
	OK      bool        `json:"ok"`
	Error   ErrorDetail `json:"error"`
	Details string      `json:"details,omitempty"`
	Preview string      `json:"preview,omitempty"`
}

// NewErrorResponse собирает ErrorResponse с ok=false.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
