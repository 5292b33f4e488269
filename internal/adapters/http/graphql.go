package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
)

// gqlCall runs a bridge action for a resolver and turns an error reply into a
// GraphQL error.
func gqlCall(ctx context.Context, deps *Dependencies, a domain.Action, args []json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, deps.replyTimeout())
	defer cancel()

	res, err := deps.Bridge.Call(ctx, string(a), args)
	if err != nil {
		return "", err
	}
	if !res.OK {
		return "", errors.New(res.Message)
	}
	return res.Payload, nil
}

// poiResult converts the bridge POI payload into resolver maps.
func poiResult(payload string) (interface{}, error) {
	var pois []usecases.POIPayload
	if err := json.Unmarshal([]byte(payload), &pois); err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(pois))
	for _, p := range pois {
		out = append(out, map[string]interface{}{
			"identifier": p.Identifier,
			"name":       p.Name,
			"latitude":   p.Latitude,
			"longitude":  p.Longitude,
		})
	}
	return out, nil
}

// buildSchema creates the GraphQL schema on top of the bridge.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointOfInterest",
		Fields: graphql.Fields{
			"identifier": &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"latitude":   &graphql.Field{Type: graphql.Float},
			"longitude":  &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"extensionVersion": &graphql.Field{
				Type:        graphql.String,
				Description: "Places extension version",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return gqlCall(p.Context, deps, domain.ActionExtensionVersion, nil)
				},
			},
			"currentPointsOfInterest": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "POIs the user is currently inside",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					payload, err := gqlCall(p.Context, deps, domain.ActionGetCurrentPointsOfInterest, nil)
					if err != nil {
						return nil, err
					}
					return poiResult(payload)
				},
			},
			"lastKnownLocation": &graphql.Field{
				Type:        locationType,
				Description: "Location of the last nearby query",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					payload, err := gqlCall(p.Context, deps, domain.ActionGetLastKnownLocation, nil)
					if err != nil {
						return nil, err
					}
					var loc usecases.LocationPayload
					if err := json.Unmarshal([]byte(payload), &loc); err != nil {
						return nil, err
					}
					return map[string]interface{}{"latitude": loc.Latitude, "longitude": loc.Longitude}, nil
				},
			},
			"nearbyPointsOfInterest": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "POIs closest to a location",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					args, err := rawArgs(map[string]interface{}{
						"latitude":  p.Args["latitude"],
						"longitude": p.Args["longitude"],
					}, p.Args["limit"])
					if err != nil {
						return nil, err
					}
					payload, err := gqlCall(p.Context, deps, domain.ActionGetNearbyPointsOfInterest, args)
					if err != nil {
						return nil, err
					}
					return poiResult(payload)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"clear": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Forget the last location and current POIs",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if _, err := gqlCall(p.Context, deps, domain.ActionClear, nil); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"processGeofence": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Register a circular geofence",
				Args: graphql.FieldConfigArgument{
					"requestId":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"latitude":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"expirationDuration": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: -1},
					"transitionType":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					geofence := map[string]interface{}{
						"requestId": p.Args["requestId"],
						"circularRegion": map[string]interface{}{
							"latitude":  p.Args["latitude"],
							"longitude": p.Args["longitude"],
							"radius":    p.Args["radius"],
						},
						"expirationDuration": p.Args["expirationDuration"],
					}
					args, err := rawArgs(geofence, p.Args["transitionType"])
					if err != nil {
						return nil, err
					}
					if _, err := gqlCall(p.Context, deps, domain.ActionProcessGeofence, args); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"setAuthorizationStatus": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Set location authorization (0 denied, 1 always, 2 unknown, 3 restricted, 4 when in use)",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					args, err := rawArgs(p.Args["status"])
					if err != nil {
						return nil, err
					}
					if _, err := gqlCall(p.Context, deps, domain.ActionSetAuthorizationStatus, args); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
