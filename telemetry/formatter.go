package telemetry

import (
	"fmt"
	"time"

	"gca-engine/vehicle"
)

// FormatStatus renders one ASCII status line:
//
//	GCA,<time>,<mode>,<fault>,x,y,z,yaw,u,v,w,dist,reached,allocstatus\r\n
//
// The comma-separated layout keeps the line trivially parseable by shore
// tooling without a schema.
func FormatStatus(stamp time.Time, mode vehicle.Mode, fault vehicle.Fault, st vehicle.VehicleState, sp vehicle.Setpoint, status vehicle.AllocStatus) []byte {
	reached := 0
	if sp.Reached {
		reached = 1
	}
	line := fmt.Sprintf("GCA,%s,%s,%s,%.2f,%.2f,%.2f,%.3f,%.2f,%.2f,%.2f,%.2f,%d,%s\r\n",
		stamp.UTC().Format("20060102150405.000"),
		mode, fault,
		st.Pos[0], st.Pos[1], st.Pos[2], st.Yaw,
		st.Vel[0], st.Vel[1], st.Vel[2],
		sp.DistanceToGoal, reached, status)
	return []byte(line)
}

// FormatFault renders a fault transition line.
func FormatFault(stamp time.Time, fault vehicle.Fault) []byte {
	return []byte(fmt.Sprintf("FAULT,%s,%s\r\n", stamp.UTC().Format("20060102150405.000"), fault))
}
