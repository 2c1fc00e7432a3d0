package influxdb

// Measurement names.
const (
	MeasurementSceneSwitch = "slobs_scene_switch"
	MeasurementStream      = "slobs_stream"
	MeasurementCommand     = "slobs_command"
)

// WriteSceneSwitch records the active scene changing. Tagged by scene so
// switches can be counted per scene.
func (c *Client) WriteSceneSwitch(scene, previous string) {
	c.record(MeasurementSceneSwitch,
		map[string]string{"scene": scene},
		map[string]interface{}{"previous": previous, "count": 1},
	)
}

// WriteStreamStatus records a stream going live (true) or ending (false).
func (c *Client) WriteStreamStatus(live bool) {
	c.record(MeasurementStream, nil, map[string]interface{}{"live": live})
}

// WriteCommand records the outcome of one bus command. target stays a
// field; source names are unbounded.
//
// Example:
//
//	client.WriteCommand("flip_x", "Camera", true, 2)
func (c *Client) WriteCommand(command, target string, accepted bool, matched int) {
	status := "failed"
	if accepted {
		status = "accepted"
	}
	c.record(MeasurementCommand,
		map[string]string{"command": command, "status": status},
		map[string]interface{}{"target": target, "matched": matched},
	)
}

// WritePoint writes a custom point. The bridge tag is always set.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.record(measurement, tags, fields)
}
