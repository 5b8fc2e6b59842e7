// Package access decides whether an RFID card may open a room.
//
// A Grant binds one card UID to one room for a guest's booking. Card UIDs
// are normalised before they are stored or compared: every Unicode
// whitespace rune is removed and the rest is upper-cased, so "ab 12" and
// "AB12" are the same card. The UID is unique across the site.
//
// The Validator fails closed. Any doubt (missing input, no grant, storage
// fault, deadline exceeded) yields a denial. Check exposes why a request was
// denied; ValidateAccess collapses that to a bool for callers that only need
// the answer.
//
// Grants arrive from two places: the create endpoint used by the hotel
// backend, and the background sync that caches the backend's card list
// locally (CacheGrant, insert-if-absent).
package access
