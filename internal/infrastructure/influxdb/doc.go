// Package influxdb records device activity in InfluxDB.
//
// It wraps influxdb-client-go v2 with a non-blocking batched write API.
// Two measurements are written:
//
//   - device_actions: one point per executor run, tagged by device,
//     action, handler and outcome, with duration and exit code fields.
//   - device_state: one point per persisted state change, tagged by
//     device and mode, with the numeric display params as fields.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceAction(influxdb.ActionPoint{DeviceID: id, Action: "on", Outcome: "success"})
//
// The service treats InfluxDB as optional; writes on a closed client are
// dropped.
package influxdb
