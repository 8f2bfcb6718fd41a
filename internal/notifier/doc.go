// Package notifier delivers status messages and error reports to the configured chat.
//
// Delivery is best-effort: a failed send is logged and counted, never returned
// to the caller. Sends are paced by a token-bucket limiter so a burst of
// error reports cannot trip the Bot API flood limits.
package notifier
