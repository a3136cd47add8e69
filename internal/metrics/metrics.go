// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skincheck_uploads_total",
		Help: "Analysed uploads by classification result.",
	}, []string{"result"})

	OTPVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skincheck_otp_verifications_total",
		Help: "OTP verification attempts by outcome.",
	}, []string{"outcome"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skincheck_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// OTP verification outcomes.
const (
	OTPVerified = "verified"
	OTPRejected = "rejected"
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(UploadsTotal, OTPVerificationsTotal, HTTPRequestDuration)
	})
}
