// Package auth decides whether a request comes from a registered device.
//
// Authentication is stateless: every request carries a device_id and the
// credential issued at sign-up, and the Gateway checks the pair against the
// device registry. There are no sessions, tokens or expiry. A device that
// loses its credential must be registered again under a new device_id.
//
// Storage faults always deny. Authenticate folds them into false; Identify
// returns them so the HTTP layer can answer 503 instead of 401.
package auth
