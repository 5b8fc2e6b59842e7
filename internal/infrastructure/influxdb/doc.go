// Package influxdb writes fog node time series to InfluxDB v2.
//
// Two measurements are written: access_decisions (one point per card
// check, tagged by room and reason) and device_telemetry (readings posted
// by thermostats, smoke sensors and other devices). Writes are batched and
// never block the caller; failures arrive on the SetOnError callback.
//
// InfluxDB is optional. Connect returns ErrDisabled when it is turned off
// and every write method is a no-op on a nil or closed Client.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAccessDecision("12", "granted", true, time.Now())
package influxdb
