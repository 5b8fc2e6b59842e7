// Package device is the registry of IoT devices allowed to talk to the fog
// node.
//
// A device registers once through the sign-up endpoint and receives an
// opaque credential. From then on it authenticates by presenting its
// device_id together with that credential. The registry stores only a keyed
// digest of the credential (see package credential), so the raw value exists
// exactly once: in the registration response.
//
// # Identity schemes
//
// Two identity schemes exist side by side on the same record:
//
//   - Credential identity (Identity): device_id plus credential. This is the
//     only scheme used for authentication.
//   - Network identity (Network): IP and MAC address reported at sign-up.
//     Informational; it helps operators find a device but grants nothing.
//
// # Kinds
//
// Thermostat, SmokeSensor and RFIDReader are typed views that embed Device.
// They share the credential-based identity and differ only in the telemetry
// they may report.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB, db.QueryTimeout())
//	registry := device.NewRegistry(repo, hasher)
//	registry.SetLogger(log)
//
//	d, err := registry.Register(ctx, device.RegisterRequest{DeviceID: "abc123"})
//	// d.Credential is returned to the caller and never again
package device
