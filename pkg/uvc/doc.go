// Package uvc retrieves snapshots from UniFi Video cameras over HTTPS.
//
// Two firmware generations are supported. Session firmware issues an
// authId cookie from POST /api/1.1/login and serves frames from
// GET /snap.jpeg; direct firmware accepts credentials in the body of
// POST /api/1.2/snapshot and issues no session at all. ProtocolAuto
// detects which one a camera speaks by probing the login endpoint.
//
// Sessions expire server-side without notice. FetchSnapshot absorbs one
// expiry per call by re-authenticating and repeating the request once;
// a second rejection surfaces as an authentication error.
//
//	client := uvc.NewClient(uvc.Options{
//		Address:  "10.0.0.5",
//		Password: "pass1234",
//	})
//	data, err := client.FetchSnapshot(ctx)
//
// A Client is synchronous and not safe for concurrent use.
package uvc
