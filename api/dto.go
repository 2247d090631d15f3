/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  Translates between JSON payloads and domain types. Dates travel as ISO
  "2006-01-02" strings via absence.Date's JSON methods.
*/
package api

import (
	"github.com/warp/absence-engine/absence"
)

// CreateAbsenceRequest is the payload for POST /api/absences.
type CreateAbsenceRequest struct {
	StartDate absence.Date `json:"startDate"`
	EndDate   absence.Date `json:"endDate"`
	Reason    string       `json:"reason"`
}

// UpdateAbsenceRequest is the payload for PUT /api/absences/{id}.
// All fields are the desired state; the workflow diffs against the store.
type UpdateAbsenceRequest struct {
	StartDate absence.Date   `json:"startDate"`
	EndDate   absence.Date   `json:"endDate"`
	Reason    string         `json:"reason"`
	Status    absence.Status `json:"status"`
}

// AbsenceResponse is the serialized form of a request.
type AbsenceResponse struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employeeId"`
	StartDate  absence.Date   `json:"startDate"`
	EndDate    absence.Date   `json:"endDate"`
	Reason     string         `json:"reason"`
	Status     absence.Status `json:"status"`
}

func toAbsenceResponse(req absence.AbsenceRequest) AbsenceResponse {
	return AbsenceResponse{
		ID:         req.ID,
		EmployeeID: req.EmployeeID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Reason:     req.Reason,
		Status:     req.Status,
	}
}

func toAbsenceResponses(reqs []absence.AbsenceRequest) []AbsenceResponse {
	out := make([]AbsenceResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toAbsenceResponse(r))
	}
	return out
}

// BalanceResponse mirrors absence.BalanceSummary.
type BalanceResponse struct {
	Year            int `json:"year"`
	Allowance       int `json:"vacationDaysAllowance"`
	Balance         int `json:"vacationDaysBalance"`
	NextYearBalance int `json:"vacationDaysBalanceNextYear"`
}

// HolidayResponse is one bank holiday.
type HolidayResponse struct {
	Date absence.Date `json:"date"`
	Name string       `json:"name"`
}

// RoleResponse reports the acting user's role for a request.
type RoleResponse struct {
	Role absence.Role `json:"role"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
