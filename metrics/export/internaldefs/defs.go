package internaldefs

import (
	goCreds "github.com/MrEthical07/goCreds"
)

// CounterDef names one Store counter for exporters.
type CounterDef struct {
	ID   goCreds.MetricID
	Name string
	Help string
}

// HistogramDef names one Store histogram for exporters.
type HistogramDef struct {
	ID   goCreds.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goCreds.MetricLoadSuccess, Name: "gocreds_load_success_total", Help: "Successful reads of the user file."},
	{ID: goCreds.MetricLoadFailure, Name: "gocreds_load_failure_total", Help: "User file reads that fell back to an empty store."},
	{ID: goCreds.MetricPersistSuccess, Name: "gocreds_persist_success_total", Help: "Successful writes of the user file."},
	{ID: goCreds.MetricPersistFailure, Name: "gocreds_persist_failure_total", Help: "Failed writes of the user file."},
	{ID: goCreds.MetricUserCreated, Name: "gocreds_user_created_total", Help: "Created users."},
	{ID: goCreds.MetricUserCreateDuplicate, Name: "gocreds_user_duplicate_total", Help: "Creates or renames rejected for a taken username."},
	{ID: goCreds.MetricUserUpdated, Name: "gocreds_user_updated_total", Help: "Applied partial user updates."},
	{ID: goCreds.MetricUserDeleted, Name: "gocreds_user_deleted_total", Help: "Deleted users."},
	{ID: goCreds.MetricUserToggled, Name: "gocreds_user_toggled_total", Help: "User activation toggles."},
	{ID: goCreds.MetricPasswordVerifySuccess, Name: "gocreds_password_verify_success_total", Help: "Successful password verifications."},
	{ID: goCreds.MetricPasswordVerifyFailure, Name: "gocreds_password_verify_failure_total", Help: "Rejected password verifications."},
	{ID: goCreds.MetricPasswordUpdated, Name: "gocreds_password_updated_total", Help: "Password rotations."},
	{ID: goCreds.MetricTOTPEnabled, Name: "gocreds_totp_enabled_total", Help: "TOTP enrollments."},
	{ID: goCreds.MetricTOTPDisabled, Name: "gocreds_totp_disabled_total", Help: "TOTP removals."},
	{ID: goCreds.MetricTOTPCodeSuccess, Name: "gocreds_totp_code_success_total", Help: "Accepted TOTP codes."},
	{ID: goCreds.MetricTOTPCodeFailure, Name: "gocreds_totp_code_failure_total", Help: "Rejected TOTP codes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goCreds.MetricPersistLatency, Name: "gocreds_persist_latency_seconds", Help: "User file write latency histogram."},
}

// HistogramBounds are the upper bucket bounds, in seconds, matching the Store's buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds rendered for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
