// Package api provides the HTTP REST API and WebSocket event stream of the
// fog node.
//
// Devices sign up once (POST /api/v1/sign-up) and receive an API key. Every
// later request on a protected route presents it in X-API-Key together with
// its device_id (path parameter, X-Device-ID header or JSON body field).
// RFID readers ask POST /api/v1/rfid/validate-access whether a card may
// open a room; the answer is always 200 with access_granted, and storage
// faults deny.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
