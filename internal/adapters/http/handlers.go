package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
)

// callBridge runs action through the dispatcher and waits for its reply, at
// most deps.ReplyTimeout. The returned error is ErrActionNotHandled or a
// context error; a failed action is reported through Result.
func callBridge(c *fiber.Ctx, deps *Dependencies, action string, args []json.RawMessage) (usecases.Result, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), deps.replyTimeout())
	defer cancel()
	return deps.Bridge.Call(ctx, action, args)
}

// bridgeError writes the error response for a callBridge outcome.
func bridgeError(c *fiber.Ctx, action string, res usecases.Result, err error) error {
	switch {
	case errors.Is(err, usecases.ErrActionNotHandled):
		return errUnsupportedAction(c, fmt.Sprintf("action %q is not supported", action))
	case errors.Is(err, context.DeadlineExceeded):
		return errGatewayTimeout(c, fmt.Sprintf("no reply from %s within the deadline", action))
	case err != nil:
		return errInternal(c, err.Error())
	}
	return errBridge(c, res.Message)
}

// rawArgs encodes values as a bridge argument list.
func rawArgs(values ...any) ([]json.RawMessage, error) {
	args := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		args = append(args, b)
	}
	return args, nil
}

// BridgeHandler exposes the raw bridge: the path names the action and the
// body is the JSON argument array.
func BridgeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		action := c.Params("action")
		args, err := usecases.DecodeArgs(c.Body())
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := callBridge(c, deps, action, args)
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		return c.JSON(res.Envelope())
	}
}

// ExtensionVersionHandler returns the Places extension version.
func ExtensionVersionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		action := string(domain.ActionExtensionVersion)
		res, err := callBridge(c, deps, action, nil)
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		return c.JSON(fiber.Map{"version": res.Payload})
	}
}

// jsonPayloadHandler serves an argument-less action whose payload is JSON text.
func jsonPayloadHandler(deps *Dependencies, a domain.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := callBridge(c, deps, string(a), nil)
		if err != nil || !res.OK {
			return bridgeError(c, string(a), res, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(res.Payload)
	}
}

// CurrentPointsOfInterestHandler returns the POIs the user is currently inside.
func CurrentPointsOfInterestHandler(deps *Dependencies) fiber.Handler {
	return jsonPayloadHandler(deps, domain.ActionGetCurrentPointsOfInterest)
}

// LastKnownLocationHandler returns the last location seen by a nearby query.
func LastKnownLocationHandler(deps *Dependencies) fiber.Handler {
	return jsonPayloadHandler(deps, domain.ActionGetLastKnownLocation)
}

// NearbyPointsOfInterestHandler returns POIs around lat/lon. Values are passed
// to the bridge as given; it reports unparsable numbers.
func NearbyPointsOfInterestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon := c.Query("lat"), c.Query("lon")
		if lat == "" || lon == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		limit := c.Query("limit", "10")

		args, err := rawArgs(map[string]string{"latitude": lat, "longitude": lon}, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		action := string(domain.ActionGetNearbyPointsOfInterest)
		res, err := callBridge(c, deps, action, args)
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(res.Payload)
	}
}

// ClearStateHandler forgets the last location and current POIs.
func ClearStateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		action := string(domain.ActionClear)
		res, err := callBridge(c, deps, action, nil)
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RegisterGeofenceHandler registers a geofence. The body is the geofence
// object plus a "transitionType" field.
func RegisterGeofenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return errBadRequest(c, "body must be a JSON object")
		}
		transition, ok := body["transitionType"]
		if !ok {
			return errBadRequest(c, "transitionType is required")
		}
		delete(body, "transitionType")

		geofence, err := json.Marshal(body)
		if err != nil {
			return errInternal(c, err.Error())
		}

		action := string(domain.ActionProcessGeofence)
		res, err := callBridge(c, deps, action, []json.RawMessage{geofence, transition})
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SetAuthorizationHandler sets the location authorization status from
// {"status": <0-4>}.
func SetAuthorizationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Status json.RawMessage `json:"status"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil || len(body.Status) == 0 {
			return errBadRequest(c, "body must be {\"status\": <0-4>}")
		}

		action := string(domain.ActionSetAuthorizationStatus)
		res, err := callBridge(c, deps, action, []json.RawMessage{body.Status})
		if err != nil || !res.OK {
			return bridgeError(c, action, res, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
