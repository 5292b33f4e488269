package domain

import (
	"fmt"
	"time"
)

// POI is a point of interest as returned by the Places SDK.
type POI struct {
	Identifier   string         `json:"identifier"`
	Name         string         `json:"name"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Radius       float64        `json:"radius"` // meters
	Weight       int            `json:"weight"`
	UserIsWithin bool           `json:"user_is_within"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Distance     *float64       `json:"distance,omitempty"` // computed field
	CreatedAt    time.Time      `json:"created_at"`
}

// Geofence transition types. Values are bit flags and may be combined.
const (
	TransitionEnter = 1
	TransitionExit  = 2
	TransitionDwell = 4
)

// NeverExpire marks a geofence that stays registered until removed.
const NeverExpire time.Duration = -1

// Geofence is a circular region registered for boundary-crossing notifications.
type Geofence struct {
	RequestID       string         `json:"request_id"`
	Region          CircularRegion `json:"region"`
	Expiration      time.Duration  `json:"expiration"`
	TransitionTypes int            `json:"transition_types"`
}

// Expires reports whether the geofence has a finite lifetime.
func (g Geofence) Expires() bool {
	return g.Expiration > 0
}

// AuthorizationStatus is the user's granted level of location permission.
type AuthorizationStatus string

const (
	AuthorizationDenied     AuthorizationStatus = "DENIED"
	AuthorizationAlways     AuthorizationStatus = "ALWAYS"
	AuthorizationUnknown    AuthorizationStatus = "UNKNOWN"
	AuthorizationRestricted AuthorizationStatus = "RESTRICTED"
	AuthorizationWhenInUse  AuthorizationStatus = "WHEN_IN_USE"
)

// authorizationCodes is indexed by the wire code.
var authorizationCodes = [...]AuthorizationStatus{
	AuthorizationDenied,
	AuthorizationAlways,
	AuthorizationUnknown,
	AuthorizationRestricted,
	AuthorizationWhenInUse,
}

// AuthorizationStatusFromCode maps the 0-4 wire code to a status.
func AuthorizationStatusFromCode(code int) (AuthorizationStatus, bool) {
	if code < 0 || code >= len(authorizationCodes) {
		return "", false
	}
	return authorizationCodes[code], true
}

// Code returns the wire code of the status, or -1 when the status is not known.
func (s AuthorizationStatus) Code() int {
	for i, st := range authorizationCodes {
		if st == s {
			return i
		}
	}
	return -1
}

// Allowed reports whether location queries may be served under this status.
func (s AuthorizationStatus) Allowed() bool {
	return s != AuthorizationDenied && s != AuthorizationRestricted
}

// RequestErrorCode identifies why a Places query failed.
type RequestErrorCode string

const (
	ErrConnectivity            RequestErrorCode = "CONNECTIVITY_ERROR"
	ErrServerResponse          RequestErrorCode = "SERVER_RESPONSE_ERROR"
	ErrInvalidLatLong          RequestErrorCode = "INVALID_LATLONG_ERROR"
	ErrConfiguration           RequestErrorCode = "CONFIGURATION_ERROR"
	ErrQueryServiceUnavailable RequestErrorCode = "QUERY_SERVICE_UNAVAILABLE"
	ErrPrivacyOptedOut         RequestErrorCode = "PRIVACY_OPTED_OUT"
	ErrUnknown                 RequestErrorCode = "UNKNOWN_ERROR"
)

// RequestError is the error reported by a failed POI query.
type RequestError struct {
	Code    RequestErrorCode
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Geofence event types.
const (
	GeofenceRegistered = "registered"
	GeofenceExpired    = "expired"
)

// GeofenceEvent is published whenever a geofence is registered or expires.
type GeofenceEvent struct {
	Type           string    `json:"type"`
	Geofence       Geofence  `json:"geofence"`
	TransitionType int       `json:"transition_type"`
	Time           time.Time `json:"time"`
}

// AuthorizationEvent is published when the authorization status changes.
type AuthorizationEvent struct {
	Status AuthorizationStatus `json:"status"`
	Time   time.Time           `json:"time"`
}
