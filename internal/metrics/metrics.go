// Package metrics records operational counters for payments, dispatch and
// HTTP traffic.
package metrics

import "time"

// Sink receives operational events. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordWebhookEvent(kind, outcome string)
	RecordPaymentIntent(paymentType, outcome string)
	RecordJobTransition(from, to string)
	RecordLocationFix(outcome string)
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordWebhookEvent(string, string)              {}
func (NopSink) RecordPaymentIntent(string, string)             {}
func (NopSink) RecordJobTransition(string, string)             {}
func (NopSink) RecordLocationFix(string)                       {}
func (NopSink) ObserveHTTP(string, string, int, time.Duration) {}
