// Package config is the startup configuration surface. Everything the
// pipeline tunes at deployment time lives here: vehicle context, rates,
// thruster geometry and limits, control gains, EKF covariances and the
// staleness thresholds. Nothing is persisted across restarts; the file is
// read once and the result treated as immutable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ThrusterSpec describes one thruster: mounting position and unit force
// direction in the body frame, force bounds and an allocation weight.
type ThrusterSpec struct {
	Name     string     `mapstructure:"name"`
	Pos      [3]float64 `mapstructure:"pos"`
	Dir      [3]float64 `mapstructure:"dir"`
	MinForce float64    `mapstructure:"min_force"`
	MaxForce float64    `mapstructure:"max_force"`
	Weight   float64    `mapstructure:"weight"`
}

type Rates struct {
	EstimatorHz float64 `mapstructure:"estimator_hz"`
	ControlHz   float64 `mapstructure:"control_hz"`
	TelemetryHz float64 `mapstructure:"telemetry_hz"`
}

type AllocConfig struct {
	Damping       float64 `mapstructure:"damping"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// EKFConfig holds the process and measurement noise parameters. These are
// deployment-tuned; the defaults below match the simulated vehicle.
type EKFConfig struct {
	SigmaAccel   float64 `mapstructure:"sigma_accel"`    // linear process noise
	SigmaAngAcc  float64 `mapstructure:"sigma_ang_acc"`  // angular process noise
	ImuOrientVar float64 `mapstructure:"imu_orient_var"` // rad^2
	ImuRateVar   float64 `mapstructure:"imu_rate_var"`   // (rad/s)^2
	DvlVar       float64 `mapstructure:"dvl_var"`        // (m/s)^2
	DepthVar     float64 `mapstructure:"depth_var"`      // m^2
	InitPosVar   float64 `mapstructure:"init_pos_var"`
	InitVelVar   float64 `mapstructure:"init_vel_var"`
}

type Staleness struct {
	// Stale marks the estimate STALE after this long without any sample.
	Stale time.Duration `mapstructure:"stale"`
	// Dropout raises SENSOR_FAULT to the arbiter after this long.
	Dropout time.Duration `mapstructure:"dropout"`
}

type PIDGains struct {
	P   float64 `mapstructure:"p"`
	I   float64 `mapstructure:"i"`
	D   float64 `mapstructure:"d"`
	Sat float64 `mapstructure:"sat"`
}

type GainsConfig struct {
	// Path-following backstepping autopilot.
	SurgeK    float64 `mapstructure:"surge_k"`
	SurgeMass float64 `mapstructure:"surge_mass"`
	SurgeDamp float64 `mapstructure:"surge_damp"`
	YawK1     float64 `mapstructure:"yaw_k1"`
	YawK2     float64 `mapstructure:"yaw_k2"`
	YawInert  float64 `mapstructure:"yaw_inertia"`
	SwayDamp  float64 `mapstructure:"sway_damp"`

	// Station-keeping regulators.
	PosX    PIDGains `mapstructure:"pos_x"`
	PosY    PIDGains `mapstructure:"pos_y"`
	Heading PIDGains `mapstructure:"heading"`
	Depth   PIDGains `mapstructure:"depth"`
}

type LOSConfig struct {
	LookAhead    float64 `mapstructure:"look_ahead"`
	AcceptRadius float64 `mapstructure:"accept_radius"`
	DefaultSpeed float64 `mapstructure:"default_speed"`
	// Reference model natural frequency and relative damping.
	RefOmega float64 `mapstructure:"ref_omega"`
	RefZeta  float64 `mapstructure:"ref_zeta"`
}

type SensorConfig struct {
	UDPListen string `mapstructure:"udp_listen"`
}

type ThrusterIfaceConfig struct {
	CANInterface string `mapstructure:"can_interface"`
	CANBaseID    uint32 `mapstructure:"can_base_id"`
}

type TelemetryConfig struct {
	Header     string   `mapstructure:"header"`
	UDPTargets []string `mapstructure:"udp_targets"`
	TCPTargets []string `mapstructure:"tcp_targets"`
}

type WebConfig struct {
	Listen string `mapstructure:"listen"`
}

type RecordConfig struct {
	Path string `mapstructure:"path"`
}

type Config struct {
	VehicleContext string `mapstructure:"vehicle_context"`
	LogLevel       string `mapstructure:"log_level"`

	Rates     Rates               `mapstructure:"rates"`
	Thrusters []ThrusterSpec      `mapstructure:"thrusters"`
	Alloc     AllocConfig         `mapstructure:"alloc"`
	EKF       EKFConfig           `mapstructure:"ekf"`
	Staleness Staleness           `mapstructure:"staleness"`
	Gains     GainsConfig         `mapstructure:"gains"`
	LOS       LOSConfig           `mapstructure:"los"`
	Sensor    SensorConfig        `mapstructure:"sensor"`
	Thruster  ThrusterIfaceConfig `mapstructure:"thruster"`
	Telemetry TelemetryConfig     `mapstructure:"telemetry"`
	Web       WebConfig           `mapstructure:"web"`
	Record    RecordConfig        `mapstructure:"record"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vehicle_context", "simulated")
	v.SetDefault("log_level", "info")

	v.SetDefault("rates.estimator_hz", 50.0)
	v.SetDefault("rates.control_hz", 20.0)
	v.SetDefault("rates.telemetry_hz", 5.0)

	v.SetDefault("alloc.damping", 0.05)
	v.SetDefault("alloc.max_iterations", 8)

	v.SetDefault("ekf.sigma_accel", 0.08)
	v.SetDefault("ekf.sigma_ang_acc", 0.05)
	v.SetDefault("ekf.imu_orient_var", 0.0025)
	v.SetDefault("ekf.imu_rate_var", 0.0004)
	v.SetDefault("ekf.dvl_var", 0.0009)
	v.SetDefault("ekf.depth_var", 0.0025)
	v.SetDefault("ekf.init_pos_var", 25.0)
	v.SetDefault("ekf.init_vel_var", 1.0)

	v.SetDefault("staleness.stale", "250ms")
	v.SetDefault("staleness.dropout", "2s")

	v.SetDefault("gains.surge_k", 2.0)
	v.SetDefault("gains.surge_mass", 30.9)
	v.SetDefault("gains.surge_damp", 8.0)
	v.SetDefault("gains.yaw_k1", 1.2)
	v.SetDefault("gains.yaw_k2", 2.5)
	v.SetDefault("gains.yaw_inertia", 5.0)
	v.SetDefault("gains.sway_damp", 6.0)
	v.SetDefault("gains.pos_x", map[string]any{"p": 20.0, "i": 0.0, "d": 10.0, "sat": 25.0})
	v.SetDefault("gains.pos_y", map[string]any{"p": 20.0, "i": 0.0, "d": 10.0, "sat": 25.0})
	v.SetDefault("gains.heading", map[string]any{"p": 25.0, "i": 0.0, "d": 10.0, "sat": 15.0})
	v.SetDefault("gains.depth", map[string]any{"p": 30.0, "i": 2.0, "d": 12.0, "sat": 40.0})

	v.SetDefault("los.look_ahead", 0.7)
	v.SetDefault("los.accept_radius", 0.5)
	v.SetDefault("los.default_speed", 0.4)
	v.SetDefault("los.ref_omega", 1.0)
	v.SetDefault("los.ref_zeta", 1.0)

	v.SetDefault("sensor.udp_listen", ":44555")
	v.SetDefault("thruster.can_interface", "can0")
	v.SetDefault("thruster.can_base_id", 0x210)
	v.SetDefault("telemetry.header", "gca")
	v.SetDefault("web.listen", ":8088")
	v.SetDefault("record.path", "")
}

// Load reads the YAML configuration at path, applies defaults and
// GCA_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := parseContext(c.VehicleContext); err != nil {
		return err
	}
	if len(c.Thrusters) == 0 {
		return fmt.Errorf("no thrusters configured")
	}
	for i, t := range c.Thrusters {
		if t.MaxForce <= t.MinForce {
			return fmt.Errorf("thruster %d (%s): max_force %.2f <= min_force %.2f",
				i, t.Name, t.MaxForce, t.MinForce)
		}
		if t.Dir == [3]float64{} {
			return fmt.Errorf("thruster %d (%s): zero direction vector", i, t.Name)
		}
	}
	if c.Rates.EstimatorHz <= 0 || c.Rates.ControlHz <= 0 {
		return fmt.Errorf("rates must be positive")
	}
	if c.Staleness.Stale <= 0 || c.Staleness.Dropout <= c.Staleness.Stale {
		return fmt.Errorf("staleness.dropout must exceed staleness.stale")
	}
	if c.Alloc.MaxIterations < 1 {
		return fmt.Errorf("alloc.max_iterations must be >= 1")
	}
	return nil
}

func parseContext(s string) (string, error) {
	switch s {
	case "real", "REAL", "simulated", "SIMULATED", "sim":
		return s, nil
	}
	return "", fmt.Errorf("unknown vehicle_context %q", s)
}
