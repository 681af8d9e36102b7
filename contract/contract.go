// Package contract holds the wire-level types shared by the HTTP
// handlers and the live socket: the response envelope and the numeric
// error codes clients dispatch on.
package contract

import "encoding/json"

// Error codes. The ranges group related failures: 1xx for account
// conflicts, 2xx for malformed input, 3xx for backing-store trouble.
const (
	CodeWrongPassword   = 0
	CodeEmailConflict   = 100
	CodeHandleConflict  = 101
	CodeBadSchema       = 200
	CodeBadEmail        = 201
	CodeBadHandle       = 202
	CodeBadPasswordHash = 203
	CodeBadRedirect     = 204
	CodeUnknownAction   = 205
	CodeRoomMismatch    = 206
	CodeLagged          = 207
	CodeStoreFailure    = 300
)

type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Response is the body of every non-upgrade reply. Success responses
// carry their payload inline; failures carry a WireError.
type Response struct {
	Success bool       `json:"success"`
	ID      string     `json:"id,omitempty"`
	Avatar  string     `json:"avatar,omitempty"`
	Chat    string     `json:"chat,omitempty"`
	Error   *WireError `json:"error,omitempty"`
}

func Failure(code int, message, details string) Response {
	return Response{
		Success: false,
		Error:   &WireError{Code: code, Message: message, Details: details},
	}
}

// Frame renders a failure as a standalone JSON frame for the socket.
func Frame(code int, message, details string) []byte {
	data, _ := json.Marshal(Failure(code, message, details))
	return data
}
