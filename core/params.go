package core

import (
	"errors"
	"math"
	"sync"
)

// Parameter store errors. ErrNotFound is ordinary control flow (fall
// back to compiled-in defaults); anything else is a real storage fault.
var (
	ErrNotFound = errors.New("param not found")
	ErrNoStore  = errors.New("no param store configured")
)

// ParamStore is the contract for a nonvolatile key-value namespace,
// shaped like an NVS partition: typed gets/sets staged in RAM and made
// durable by Commit. The driver mechanics behind it are not this
// package's problem.
type ParamStore interface {
	// GetBlob copies the stored value for key into buf and returns its
	// length. ErrNotFound when the key is absent.
	GetBlob(key string, buf []byte) (int, error)

	// SetBlob stages a value for key.
	SetBlob(key string, data []byte) error

	// GetU8 returns a single stored byte. ErrNotFound when absent.
	GetU8(key string) (uint8, error)

	// SetU8 stages a single byte for key.
	SetU8(key string, v uint8) error

	// EraseAll stages removal of every key in the namespace.
	EraseAll() error

	// Commit makes all staged changes durable as one unit.
	Commit() error
}

// Store keys for the learned PID parameter set.
const (
	keyPidKp      = "pid_kp"
	keyPidKi      = "pid_ki"
	keyPidKd      = "pid_kd"
	keyPidOutMax  = "pid_out_max"
	keyPidLearned = "learned"
)

// LoadGains reads the learned parameter set. It returns ErrNotFound
// when the learned marker is absent or unset, which callers must treat
// as "keep the defaults" rather than a fault: a set that was never
// learned is different from a learned set that happens to hold any
// particular values.
func LoadGains(store ParamStore) (Gains, error) {
	var g Gains

	learned, err := store.GetU8(keyPidLearned)
	if err != nil || learned == 0 {
		if err != nil && err != ErrNotFound {
			return g, err
		}
		return g, ErrNotFound
	}

	if g.Kp, err = getFloat(store, keyPidKp); err != nil {
		return g, err
	}
	if g.Ki, err = getFloat(store, keyPidKi); err != nil {
		return g, err
	}
	if g.Kd, err = getFloat(store, keyPidKd); err != nil {
		return g, err
	}
	if g.OutputMax, err = getFloat(store, keyPidOutMax); err != nil {
		return g, err
	}
	return g, nil
}

// SaveGains writes the parameter set plus the learned marker and
// commits. Any failure before the commit leaves the stored set intact.
func SaveGains(store ParamStore, g Gains) error {
	if err := setFloat(store, keyPidKp, g.Kp); err != nil {
		return err
	}
	if err := setFloat(store, keyPidKi, g.Ki); err != nil {
		return err
	}
	if err := setFloat(store, keyPidKd, g.Kd); err != nil {
		return err
	}
	if err := setFloat(store, keyPidOutMax, g.OutputMax); err != nil {
		return err
	}
	if err := store.SetU8(keyPidLearned, 1); err != nil {
		return err
	}
	return store.Commit()
}

// EraseGains removes every learned parameter from the namespace.
func EraseGains(store ParamStore) error {
	if err := store.EraseAll(); err != nil {
		return err
	}
	return store.Commit()
}

// Floats are stored as 4-byte little-endian blobs.

func getFloat(store ParamStore, key string) (float64, error) {
	var buf [4]byte
	n, err := store.GetBlob(key, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 4 {
		return 0, errors.New("param blob size mismatch: " + key)
	}
	bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return float64(math.Float32frombits(bits)), nil
}

func setFloat(store ParamStore, key string, v float64) error {
	bits := math.Float32bits(float32(v))
	buf := [4]byte{
		byte(bits),
		byte(bits >> 8),
		byte(bits >> 16),
		byte(bits >> 24),
	}
	return store.SetBlob(key, buf[:])
}

// MemStore is an in-memory ParamStore used on host builds and in tests.
// Writes stage into a shadow map and only land on Commit, matching the
// durability contract of the flash-backed stores.
type MemStore struct {
	mu        sync.Mutex
	committed map[string][]byte
	staged    map[string][]byte
	eraseAll  bool

	// FailCommit forces the next Commit to fail, for tests exercising
	// the error path.
	FailCommit bool
}

// NewMemStore returns an empty in-memory namespace.
func NewMemStore() *MemStore {
	return &MemStore{
		committed: make(map[string][]byte),
		staged:    make(map[string][]byte),
	}
}

func (m *MemStore) GetBlob(key string, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[key]
	if !ok {
		return 0, ErrNotFound
	}
	return copy(buf, v), nil
}

func (m *MemStore) SetBlob(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.staged[key] = cp
	return nil
}

func (m *MemStore) GetU8(key string) (uint8, error) {
	var buf [1]byte
	n, err := m.GetBlob(key, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, errors.New("param is not a u8: " + key)
	}
	return buf[0], nil
}

func (m *MemStore) SetU8(key string, v uint8) error {
	return m.SetBlob(key, []byte{v})
}

func (m *MemStore) EraseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eraseAll = true
	m.staged = make(map[string][]byte)
	return nil
}

func (m *MemStore) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommit {
		m.FailCommit = false
		return errors.New("commit failed")
	}
	if m.eraseAll {
		m.committed = make(map[string][]byte)
		m.eraseAll = false
	}
	for k, v := range m.staged {
		m.committed[k] = v
	}
	m.staged = make(map[string][]byte)
	return nil
}
