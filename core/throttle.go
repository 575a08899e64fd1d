package core

import (
	"errors"
	"sync"
)

// Throttle sampling hooks. Target code points these at the real ADC;
// tests swap in scripted implementations.
var (
	// ThrottleSetup prepares the throttle ADC channel.
	ThrottleSetup func() error = func() error { return nil }

	// ThrottleSample performs one raw conversion. The bool reports
	// whether the reading is valid.
	ThrottleSample func() (uint16, bool) = func() (uint16, bool) { return 0, false }
)

const (
	// throttleOversample is how many raw conversions are averaged per
	// sample to knock down hall-sensor noise.
	throttleOversample = 5

	// Factory span of the 12-bit throttle ADC before calibration.
	defaultRawMin = 0
	defaultRawMax = 4095

	// calibrationMinSpan rejects a calibration where the stick was
	// barely moved; accepting it would make the scale explode.
	calibrationMinSpan = 256

	// throttleErrorLimit is how many consecutive failed samples are
	// tolerated before the reader reports the sensor as faulted.
	throttleErrorLimit = 5
)

// ErrBadSpan is returned when calibration saw too small a stick range.
var ErrBadSpan = errors.New("throttle calibration span too small")

// Store keys for the calibrated throttle span.
const (
	keyThrottleMin = "adc_min"
	keyThrottleMax = "adc_max"
)

// ThrottleReader turns raw hall-sensor conversions into the scaled
// 0-255 throttle range the rest of the firmware speaks. The calibrated
// min/max span persists across power cycles.
type ThrottleReader struct {
	mu     sync.Mutex
	store  ParamStore
	rawMin uint16
	rawMax uint16

	calibrating bool
	calMin      uint16
	calMax      uint16

	latest    uint32
	errStreak int
}

// NewThrottleReader loads the persisted calibration span, or the
// factory span when none was saved yet.
func NewThrottleReader(store ParamStore) *ThrottleReader {
	t := &ThrottleReader{
		store:  store,
		rawMin: defaultRawMin,
		rawMax: defaultRawMax,
		latest: NeutralCenter,
	}
	if store != nil {
		if min, err := getU16(store, keyThrottleMin); err == nil {
			if max, err := getU16(store, keyThrottleMax); err == nil && max > min {
				t.rawMin = min
				t.rawMax = max
			}
		}
	}
	return t
}

// Sample takes an oversampled reading and returns the scaled throttle.
// While calibration is running the stick drives the span instead of the
// motor, and neutral is substituted so the board stays put.
func (t *ThrottleReader) Sample() (uint32, bool) {
	var sum uint32
	valid := 0
	for i := 0; i < throttleOversample; i++ {
		if raw, ok := ThrottleSample(); ok {
			sum += uint32(raw)
			valid++
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if valid == 0 {
		t.errStreak++
		if t.errStreak >= throttleErrorLimit {
			// Sensor fault: report neutral so the board coasts.
			t.latest = NeutralCenter
			return NeutralCenter, false
		}
		return t.latest, true
	}
	t.errStreak = 0

	raw := uint16(sum / uint32(valid))

	if t.calibrating {
		if raw < t.calMin {
			t.calMin = raw
		}
		if raw > t.calMax {
			t.calMax = raw
		}
		t.latest = NeutralCenter
		return NeutralCenter, true
	}

	t.latest = t.scale(raw)
	return t.latest, true
}

// Latest returns the most recent scaled sample without touching the
// hardware.
func (t *ThrottleReader) Latest() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Calibrating reports whether span calibration is in progress.
func (t *ThrottleReader) Calibrating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calibrating
}

// StartCalibration begins collecting a new stick span. The rider is
// expected to sweep the stick to both extremes before stopping.
func (t *ThrottleReader) StartCalibration() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrating = true
	t.calMin = defaultRawMax
	t.calMax = defaultRawMin
}

// FinishCalibration adopts and persists the collected span. A span too
// small to be a real stick sweep is rejected and the old calibration
// stays in force.
func (t *ThrottleReader) FinishCalibration() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrating = false

	if t.calMax <= t.calMin || t.calMax-t.calMin < calibrationMinSpan {
		return ErrBadSpan
	}
	t.rawMin = t.calMin
	t.rawMax = t.calMax

	if t.store == nil {
		return nil
	}
	if err := setU16(t.store, keyThrottleMin, t.rawMin); err != nil {
		return err
	}
	if err := setU16(t.store, keyThrottleMax, t.rawMax); err != nil {
		return err
	}
	return t.store.Commit()
}

// scale maps a raw conversion onto 0-255 using the calibrated span.
func (t *ThrottleReader) scale(raw uint16) uint32 {
	if raw <= t.rawMin {
		return 0
	}
	if raw >= t.rawMax {
		return 255
	}
	span := uint32(t.rawMax - t.rawMin)
	return (uint32(raw-t.rawMin)*255 + span/2) / span
}

func getU16(store ParamStore, key string) (uint16, error) {
	var buf [2]byte
	n, err := store.GetBlob(key, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 2 {
		return 0, errors.New("param is not a u16: " + key)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func setU16(store ParamStore, key string, v uint16) error {
	return store.SetBlob(key, []byte{byte(v), byte(v >> 8)})
}
