package usecases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// ArgumentError reports an argument list that was rejected before any SDK call.
type ArgumentError struct {
	msg string
}

func (e *ArgumentError) Error() string { return e.msg }

func argCountError(want int, what string) error {
	return &ArgumentError{msg: fmt.Sprintf("Invalid argument count, expected %d (%s).", want, what)}
}

// parseError wraps a decoding failure. plural selects "arguments" over "argument".
func parseError(plural bool, err error) error {
	noun := "argument"
	if plural {
		noun = "arguments"
	}
	return &ArgumentError{msg: fmt.Sprintf("Error while parsing %s, Error %v", noun, err)}
}

// objectArg decodes args[i] as a JSON object.
func objectArg(args []json.RawMessage, i int) (map[string]json.RawMessage, error) {
	obj, err := decodeObject(args[i])
	if err != nil {
		return nil, fmt.Errorf("argument %d is not a JSON object", i)
	}
	return obj, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// intArg decodes args[i] as an integer. Numeric strings and integral floats
// are accepted; fractional values are not.
func intArg(args []json.RawMessage, i int) (int, error) {
	s, err := scalarText(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d is not an integer", i)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("argument %d is not an integer", i)
	}
	return int(f), nil
}

// scalarText returns the text of a JSON string or number.
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("not a string or number")
	}
}

func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, err := scalarText(raw)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

func floatField(obj map[string]json.RawMessage, key string) (float64, error) {
	s, err := stringField(obj, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("field %q: %q is not a number", key, s)
	}
	return f, nil
}

// nearbyArgs parses [location, limit] for getNearbyPointsOfInterest.
func nearbyArgs(args []json.RawMessage) (domain.Location, int, error) {
	if len(args) != 2 {
		return domain.Location{}, 0, argCountError(2, "location and limit")
	}
	obj, err := objectArg(args, 0)
	if err != nil {
		return domain.Location{}, 0, parseError(true, err)
	}
	limit, err := intArg(args, 1)
	if err != nil {
		return domain.Location{}, 0, parseError(true, err)
	}
	lat, err := floatField(obj, "latitude")
	if err != nil {
		return domain.Location{}, 0, parseError(true, err)
	}
	lon, err := floatField(obj, "longitude")
	if err != nil {
		return domain.Location{}, 0, parseError(true, err)
	}
	return domain.Location{Latitude: lat, Longitude: lon}, limit, nil
}

// geofenceArgs parses [geofence, transitionType] for processGeofence.
func geofenceArgs(args []json.RawMessage) (domain.Geofence, int, error) {
	if len(args) != 2 {
		return domain.Geofence{}, 0, argCountError(2, "geofence, transition type")
	}
	obj, err := objectArg(args, 0)
	if err != nil {
		return domain.Geofence{}, 0, parseError(false, err)
	}
	transition, err := intArg(args, 1)
	if err != nil {
		return domain.Geofence{}, 0, parseError(false, err)
	}
	if transition <= 0 || transition&^(domain.TransitionEnter|domain.TransitionExit|domain.TransitionDwell) != 0 {
		return domain.Geofence{}, 0, parseError(false, fmt.Errorf("invalid transition type %d", transition))
	}

	requestID, err := stringField(obj, "requestId")
	if err != nil {
		return domain.Geofence{}, 0, parseError(false, err)
	}
	if requestID == "" {
		return domain.Geofence{}, 0, parseError(false, fmt.Errorf("requestId must not be empty"))
	}

	region, err := circularRegion(obj)
	if err != nil {
		return domain.Geofence{}, 0, parseError(false, fmt.Errorf("invalid circularRegion: %w", err))
	}

	expiration, err := expirationField(obj)
	if err != nil {
		return domain.Geofence{}, 0, parseError(false, err)
	}

	return domain.Geofence{
		RequestID:       requestID,
		Region:          region,
		Expiration:      expiration,
		TransitionTypes: transition,
	}, transition, nil
}

// circularRegion reads the circularRegion field. A JSON object is the
// canonical form; a string holding a JSON object is also accepted.
func circularRegion(obj map[string]json.RawMessage) (domain.CircularRegion, error) {
	raw, ok := obj["circularRegion"]
	if !ok {
		return domain.CircularRegion{}, fmt.Errorf("missing field %q", "circularRegion")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.CircularRegion{}, err
		}
		raw = json.RawMessage(s)
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return domain.CircularRegion{}, err
	}

	var r domain.CircularRegion
	if r.Latitude, err = floatField(fields, "latitude"); err != nil {
		return domain.CircularRegion{}, err
	}
	if r.Longitude, err = floatField(fields, "longitude"); err != nil {
		return domain.CircularRegion{}, err
	}
	if r.Radius, err = floatField(fields, "radius"); err != nil {
		return domain.CircularRegion{}, err
	}
	if err := r.Validate(); err != nil {
		return domain.CircularRegion{}, err
	}
	return r, nil
}

// expirationField reads expirationDuration in milliseconds; -1 never expires.
func expirationField(obj map[string]json.RawMessage) (time.Duration, error) {
	s, err := stringField(obj, "expirationDuration")
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %q is not an integer", "expirationDuration", s)
	}
	switch {
	case ms == -1:
		return domain.NeverExpire, nil
	case ms < 0:
		return 0, fmt.Errorf("field %q: %d is negative", "expirationDuration", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// authorizationArgs parses [status] for setAuthorizationStatus.
func authorizationArgs(args []json.RawMessage) (domain.AuthorizationStatus, error) {
	if len(args) != 1 {
		return "", argCountError(1, "status")
	}
	code, err := intArg(args, 0)
	if err != nil {
		return "", parseError(false, err)
	}
	status, ok := domain.AuthorizationStatusFromCode(code)
	if !ok {
		return "", &ArgumentError{msg: fmt.Sprintf("Invalid authorization status %d, expected 0-4", code)}
	}
	return status, nil
}
