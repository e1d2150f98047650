package models

type ErrorResponse struct {
	Error string `json:"error"`
}

type AccountsResponse struct {
	Accounts []LinkedAccount `json:"accounts"`
}

// ConnectionFailed is the only failure text shown to the end user.
const ConnectionFailed = "Connection Failed"
