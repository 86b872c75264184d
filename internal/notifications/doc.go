// Package notifications delivers push notifications through ntfy.
//
// The service is a no-op when no topic is configured. Category toggles in
// the notifications config section suppress download, upload, service, or
// error messages individually; the explicit test notification always sends.
package notifications
