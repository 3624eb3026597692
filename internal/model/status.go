// Package model holds the closed set of build and builder status values shared
// by the classifier, the reconciliation cache and the presentation layer.
package model

import "git.home.luguber.info/inful/bbreport/internal/foundation/normalization"

// Status is the result of a build or the aggregate state of a builder.
//
// Builds use building, success, failure, exception and unstable. Builders use
// building, success, unstable, failure, offline and missing; a builder that has
// never been aggregated has StatusUnknown.
type Status string

const (
	StatusUnknown   Status = ""
	StatusBuilding  Status = "building"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusException Status = "exception"
	StatusUnstable  Status = "unstable"
	StatusOffline   Status = "offline"
	StatusMissing   Status = "missing"
)

var statusNormalizer = normalization.NewEnumNormalizer("status", map[string]Status{
	"building":  StatusBuilding,
	"success":   StatusSuccess,
	"failure":   StatusFailure,
	"exception": StatusException,
	"unstable":  StatusUnstable,
	"offline":   StatusOffline,
	"missing":   StatusMissing,
}, StatusUnknown)

// ParseStatus converts a stored or user-supplied value. The empty string maps
// to StatusUnknown without error.
func ParseStatus(raw string) (Status, error) {
	if raw == "" {
		return StatusUnknown, nil
	}
	return statusNormalizer.NormalizeWithValidation(raw)
}

// Statuses lists every known status value.
func Statuses() []string {
	return statusNormalizer.ValidValues()
}

// IsTerminal reports whether a build with this result has finished.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusException, StatusUnstable:
		return true
	}
	return false
}

// IsFailure reports whether the result carries failure detail.
func (s Status) IsFailure() bool {
	return s == StatusFailure || s == StatusException
}

// Fold maps build-only refinements onto builder-level values.
func (s Status) Fold() Status {
	if s == StatusException {
		return StatusFailure
	}
	return s
}

func (s Status) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return string(s)
}
