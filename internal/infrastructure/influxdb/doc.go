// Package influxdb records authentication metrics in InfluxDB v2.
//
// Logins, failed logins, renewals and session revocations become points in
// the neogend_auth and neogend_sessions measurements, tagged by site, so
// operators can chart brute-force attempts or mass disconnects. Writes are
// non-blocking and batched per the batch_size and flush_interval settings;
// asynchronous write errors reach the callback set with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent(influxdb.OutcomeLoginFailed, "")
package influxdb
