// Package api provides the HTTP REST API for SenseGrid Core.
//
// Two audiences share the router:
//   - humans, authenticated with a bearer session token, who register
//     devices, read telemetry and switch outputs;
//   - devices, authenticated with the Device-Token header, which push
//     readings and poll their output states.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Domain errors map to HTTP status codes in errors.go.
package api
