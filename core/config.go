package core

import "math"

// Store keys for the rider configuration namespace.
const (
	keyMotorPulley = "motor_pulley"
	keyWheelPulley = "wheel_pulley"
	keyWheelDiam   = "wheel_diam"
	keyMotorPoles  = "motor_poles"
	keyInvThrottle = "inv_throttle"
	keyLevelAssist = "level_assist"
)

// RiderConfig is the drivetrain and behavior configuration the rider
// can change from the console.
type RiderConfig struct {
	MotorPulley     uint8 // teeth
	WheelPulley     uint8 // teeth
	WheelDiameterMM uint8
	MotorPoles      uint8
	InvertThrottle  bool
	LevelAssist     bool
}

// DefaultRiderConfig is the drivetrain the remote ships configured for.
func DefaultRiderConfig() RiderConfig {
	return RiderConfig{
		MotorPulley:     15,
		WheelPulley:     33,
		WheelDiameterMM: 115,
		MotorPoles:      14,
		InvertThrottle:  false,
		LevelAssist:     false,
	}
}

// InitRiderConfig loads the stored configuration, seeding the store
// with defaults on first boot.
func InitRiderConfig(store ParamStore) (RiderConfig, error) {
	cfg, err := LoadRiderConfig(store)
	if err == ErrNotFound {
		cfg = DefaultRiderConfig()
		return cfg, SaveRiderConfig(store, cfg)
	}
	return cfg, err
}

// LoadRiderConfig reads the configuration. ErrNotFound means no config
// was ever saved; other errors are storage faults.
func LoadRiderConfig(store ParamStore) (RiderConfig, error) {
	var cfg RiderConfig
	var err error

	if cfg.MotorPulley, err = store.GetU8(keyMotorPulley); err != nil {
		return cfg, err
	}
	if cfg.WheelPulley, err = store.GetU8(keyWheelPulley); err != nil {
		return cfg, err
	}
	if cfg.WheelDiameterMM, err = store.GetU8(keyWheelDiam); err != nil {
		return cfg, err
	}
	if cfg.MotorPoles, err = store.GetU8(keyMotorPoles); err != nil {
		return cfg, err
	}
	inv, err := store.GetU8(keyInvThrottle)
	if err != nil {
		return cfg, err
	}
	cfg.InvertThrottle = inv != 0
	assist, err := store.GetU8(keyLevelAssist)
	if err != nil {
		return cfg, err
	}
	cfg.LevelAssist = assist != 0
	return cfg, nil
}

// SaveRiderConfig stores and commits the configuration.
func SaveRiderConfig(store ParamStore, cfg RiderConfig) error {
	if err := store.SetU8(keyMotorPulley, cfg.MotorPulley); err != nil {
		return err
	}
	if err := store.SetU8(keyWheelPulley, cfg.WheelPulley); err != nil {
		return err
	}
	if err := store.SetU8(keyWheelDiam, cfg.WheelDiameterMM); err != nil {
		return err
	}
	if err := store.SetU8(keyMotorPoles, cfg.MotorPoles); err != nil {
		return err
	}
	if err := store.SetU8(keyInvThrottle, b2u8(cfg.InvertThrottle)); err != nil {
		return err
	}
	if err := store.SetU8(keyLevelAssist, b2u8(cfg.LevelAssist)); err != nil {
		return err
	}
	return store.Commit()
}

// SpeedKMH converts motor ERPM to ground speed using the drivetrain
// ratios. Implausible inputs and results collapse to zero rather than
// flashing garbage on the display.
func (cfg RiderConfig) SpeedKMH(erpm int32) int32 {
	if erpm > 100000 || erpm < -100000 {
		return 0
	}
	if cfg.MotorPoles == 0 || cfg.MotorPulley == 0 {
		return 0
	}

	rpm := float32(erpm) / float32(cfg.MotorPoles)
	gearRatio := float32(cfg.WheelPulley) / float32(cfg.MotorPulley)
	circumferenceM := float32(cfg.WheelDiameterMM) / 1000.0 * math.Pi
	wheelRPM := rpm * gearRatio
	speed := wheelRPM * circumferenceM * 60.0 / 1000.0

	if speed > 100.0 || speed < -100.0 {
		return 0
	}
	if speed < 0 {
		speed = -speed
	}
	return int32(speed)
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
