package protocol

import "errors"

// Link frame layout:
//
//	[sync][len][type][payload ...][crcH][crcL]
//
// len counts type+payload. The CRC covers len, type and payload, so a
// corrupted length cannot validate. The decoder resynchronizes by
// hunting for the sync byte after any damage.
const (
	FrameSync = 0x7E

	frameHeaderSize  = 2 // sync + len
	frameTrailerSize = 2 // crc16
	frameMinTotal    = frameHeaderSize + 1 + frameTrailerSize

	// MaxPayload is the largest payload a single frame can carry.
	MaxPayload = FrameMax - frameHeaderSize - 1 - frameTrailerSize
)

// Frame types.
const (
	FrameTelemetry = 0x01
	FrameThrottle  = 0x02
)

// Frame decode errors.
var (
	ErrPayloadTooBig = errors.New("frame payload too big")
	ErrShortPayload  = errors.New("short payload")
)

// EncodeFrame appends one complete frame for the payload to out.
func EncodeFrame(out *ScratchOutput, ftype byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooBig
	}
	start := out.pos
	out.OutputByte(FrameSync)
	out.OutputByte(byte(1 + len(payload)))
	out.OutputByte(ftype)
	out.Output(payload)
	crc := CRC16(out.buf[start+1 : out.pos])
	out.OutputByte(byte(crc >> 8))
	out.OutputByte(byte(crc))
	return nil
}

// FrameHandler consumes one decoded frame. The payload slice is only
// valid for the duration of the call.
type FrameHandler func(ftype byte, payload []byte)

// Decoder extracts frames from the raw link byte stream.
type Decoder struct {
	fifo      *FifoBuffer
	handler   FrameHandler
	badFrames uint32
}

// NewDecoder creates a decoder buffering up to capacity raw bytes.
func NewDecoder(capacity int, handler FrameHandler) *Decoder {
	return &Decoder{
		fifo:    NewFifoBuffer(capacity),
		handler: handler,
	}
}

// Feed adds raw bytes from the link and processes every complete frame
// they finish.
func (d *Decoder) Feed(data []byte) {
	d.fifo.Write(data)
	d.pump()
}

// BadFrames counts frames dropped for framing or CRC errors.
func (d *Decoder) BadFrames() uint32 {
	return d.badFrames
}

func (d *Decoder) pump() {
	for {
		data := d.fifo.Data()

		// Hunt for sync, discarding garbage before it.
		skip := 0
		for skip < len(data) && data[skip] != FrameSync {
			skip++
		}
		if skip > 0 {
			d.fifo.Pop(skip)
			data = data[skip:]
		}
		if len(data) < frameMinTotal {
			return
		}

		length := int(data[1]) // type + payload
		if length == 0 || length > MaxPayload+1 {
			// Not a real header; this sync byte was payload noise.
			d.badFrames++
			d.fifo.Pop(1)
			continue
		}
		total := frameHeaderSize + length + frameTrailerSize
		if len(data) < total {
			return
		}

		body := data[1 : frameHeaderSize+length]
		wireCRC := uint16(data[total-2])<<8 | uint16(data[total-1])
		if CRC16(body) != wireCRC {
			d.badFrames++
			d.fifo.Pop(1)
			continue
		}

		d.handler(data[frameHeaderSize], data[frameHeaderSize+1:frameHeaderSize+length])
		d.fifo.Pop(total)
	}
}

// MaxCells is the number of battery cell slots in a telemetry frame.
const MaxCells = 16

// TelemetryPayloadLen is the fixed telemetry payload size: 14 bytes of
// motor-controller data followed by 41 bytes of battery data.
const TelemetryPayloadLen = 14 + 9 + 2*MaxCells

// TelemetryData is the decoded content of a telemetry frame. Voltages,
// currents and temperatures travel as centi-units in int16, cell
// voltages as millivolts, ERPM as a full int32.
type TelemetryData struct {
	ERPM         int32
	InputVoltage float32
	MotorCurrent float32
	InputCurrent float32
	MOSFETTemp   float32
	MotorTemp    float32

	PackVoltage float32
	PackCurrent float32
	RemainingAh float32
	NominalAh   float32
	CellCount   uint8
	CellVoltage [MaxCells]float32
}

// AppendPayload writes the wire form of t into buf, which must hold
// TelemetryPayloadLen bytes.
func (t *TelemetryData) AppendPayload(buf []byte) {
	putI16 := func(off int, v float32) {
		s := int16(v * 100)
		buf[off] = byte(uint16(s) >> 8)
		buf[off+1] = byte(uint16(s))
	}
	putI16(0, t.MOSFETTemp)
	putI16(2, t.MotorTemp)
	putI16(4, t.MotorCurrent)
	putI16(6, t.InputCurrent)
	buf[8] = byte(uint32(t.ERPM) >> 24)
	buf[9] = byte(uint32(t.ERPM) >> 16)
	buf[10] = byte(uint32(t.ERPM) >> 8)
	buf[11] = byte(uint32(t.ERPM))
	putI16(12, t.InputVoltage)
	putI16(14, t.PackVoltage)
	putI16(16, t.PackCurrent)
	putI16(18, t.RemainingAh)
	putI16(20, t.NominalAh)
	buf[22] = t.CellCount
	for i := 0; i < MaxCells; i++ {
		mv := int16(t.CellVoltage[i] * 1000)
		buf[23+i*2] = byte(uint16(mv) >> 8)
		buf[24+i*2] = byte(uint16(mv))
	}
}

// DecodeTelemetry parses a telemetry payload.
func DecodeTelemetry(payload []byte) (TelemetryData, error) {
	var t TelemetryData
	if len(payload) < TelemetryPayloadLen {
		return t, ErrShortPayload
	}
	getI16 := func(off int) int16 {
		return int16(uint16(payload[off])<<8 | uint16(payload[off+1]))
	}
	t.MOSFETTemp = float32(getI16(0)) / 100
	t.MotorTemp = float32(getI16(2)) / 100
	t.MotorCurrent = float32(getI16(4)) / 100
	t.InputCurrent = float32(getI16(6)) / 100
	t.ERPM = int32(uint32(payload[8])<<24 | uint32(payload[9])<<16 |
		uint32(payload[10])<<8 | uint32(payload[11]))
	t.InputVoltage = float32(getI16(12)) / 100
	t.PackVoltage = float32(getI16(14)) / 100
	t.PackCurrent = float32(getI16(16)) / 100
	t.RemainingAh = float32(getI16(18)) / 100
	t.NominalAh = float32(getI16(20)) / 100
	t.CellCount = payload[22]
	for i := 0; i < MaxCells; i++ {
		mv := getI16(23 + i*2)
		t.CellVoltage[i] = float32(mv) / 1000
	}
	return t, nil
}

// ThrottlePayloadLen is the throttle payload size: one little-endian
// uint16 holding the scaled 0-255 value.
const ThrottlePayloadLen = 2

// EncodeThrottle appends a throttle frame to out.
func EncodeThrottle(out *ScratchOutput, value uint16) error {
	payload := [ThrottlePayloadLen]byte{byte(value), byte(value >> 8)}
	return EncodeFrame(out, FrameThrottle, payload[:])
}

// DecodeThrottle parses a throttle payload.
func DecodeThrottle(payload []byte) (uint16, error) {
	if len(payload) < ThrottlePayloadLen {
		return 0, ErrShortPayload
	}
	return uint16(payload[0]) | uint16(payload[1])<<8, nil
}
