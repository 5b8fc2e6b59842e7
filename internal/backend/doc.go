// Package backend pulls RFID card assignments from the central hotel
// management backend into the local grant store.
//
// The fog node answers access checks from its own database so that doors
// keep working when the uplink is down. The backend remains the source of
// truth: a sync signs in with the node's service account, fetches every
// card issued for the hotel and caches the ones not yet known locally.
// Cards already present are left untouched.
//
// Syncs can be requested by a device (POST /api/v1/rfid/sync), by the
// backend over MQTT, or by the periodic loop started with Syncer.Run.
// Concurrent requests share one round trip.
package backend
