// File: internal/api/models.go
package api

import "github.com/xkilldash9x/panelgate/internal/automation"

type loginRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
}

type changePassRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Pass     string `json:"pass"`
}

type amountRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Amount   string `json:"amount"`
}

type lockUserRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
}

type logsRequest struct {
	Date string `json:"date"`
}

type excelRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// actionResponse wraps an executor outcome for action handlers.
type actionResponse struct {
	Message string              `json:"message"`
	Result  *automation.Outcome `json:"result,omitempty"`
}

// registerResponse additionally carries the password the panel assigned.
type registerResponse struct {
	Message         string `json:"message"`
	DefaultPassword string `json:"defaultPassword"`
}
