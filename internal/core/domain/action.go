package domain

// Action is the name of an operation the script layer may invoke.
type Action string

const (
	ActionClear                      Action = "clear"
	ActionExtensionVersion           Action = "extensionVersion"
	ActionGetCurrentPointsOfInterest Action = "getCurrentPointsOfInterest"
	ActionGetLastKnownLocation       Action = "getLastKnownLocation"
	ActionGetNearbyPointsOfInterest  Action = "getNearbyPointsOfInterest"
	ActionProcessGeofenceEvent       Action = "processGeofenceEvent"
	ActionProcessGeofence            Action = "processGeofence"
	ActionProcessRegionEvent         Action = "processRegionEvent"
	ActionSetAuthorizationStatus     Action = "setAuthorizationStatus"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionClear,
	ActionExtensionVersion,
	ActionGetCurrentPointsOfInterest,
	ActionGetLastKnownLocation,
	ActionGetNearbyPointsOfInterest,
	ActionProcessGeofenceEvent,
	ActionProcessGeofence,
	ActionProcessRegionEvent,
	ActionSetAuthorizationStatus,
}

// ParseAction returns the Action for name. Matching is case-sensitive.
func ParseAction(name string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}
