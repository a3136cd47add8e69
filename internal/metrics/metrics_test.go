package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(UploadsTotal.WithLabelValues("benign"))
	UploadsTotal.WithLabelValues("benign").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(UploadsTotal.WithLabelValues("benign")))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(OTPVerificationsTotal))
	OTPVerificationsTotal.WithLabelValues(OTPRejected).Inc()
	require.Equal(t, 1, testutil.CollectAndCount(OTPVerificationsTotal))
}
