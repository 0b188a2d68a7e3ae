package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by Neogend.
const (
	MeasurementAuth     = "neogend_auth"
	MeasurementSessions = "neogend_sessions"
)

// Authentication outcomes recorded in MeasurementAuth.
const (
	OutcomeLogin       = "login"
	OutcomeLoginFailed = "login_failed"
	OutcomeRenewal     = "renewal"
	OutcomeRejected    = "rejected"
)

// WriteAuthEvent counts one authentication outcome. rank is empty when
// the account is unknown.
func (c *Client) WriteAuthEvent(outcome, rank string) {
	tags := map[string]string{"outcome": outcome}
	if rank != "" {
		tags["rank"] = rank
	}
	c.WritePointWithTime(MeasurementAuth, tags, map[string]any{"count": 1}, time.Now())
}

// WriteRevocation records a version bump. affected is 1 for a single
// account and the number of accounts for a revoke-all.
func (c *Client) WriteRevocation(reason string, global bool, affected int64, at time.Time) {
	scope := "account"
	if global {
		scope = "all"
	}
	c.WritePointWithTime(MeasurementSessions,
		map[string]string{"reason": reason, "scope": scope},
		map[string]any{"affected": affected},
		at,
	)
}

// WritePointWithTime writes a point with the site tag added.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	if c.site != "" {
		tags["site"] = c.site
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
