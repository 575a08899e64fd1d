package core

import (
	"math"
	"testing"
)

func gainsClose(a, b Gains) bool {
	const eps = 1e-6
	return math.Abs(a.Kp-b.Kp) < eps &&
		math.Abs(a.Ki-b.Ki) < eps &&
		math.Abs(a.Kd-b.Kd) < eps &&
		math.Abs(a.OutputMax-b.OutputMax) < eps
}

func TestGainsRoundTrip(t *testing.T) {
	store := NewMemStore()

	want := Gains{Kp: 0.42, Ki: 0.13, Kd: 0.027, OutputMax: 55.5}
	if err := SaveGains(store, want); err != nil {
		t.Fatalf("SaveGains: %v", err)
	}

	got, err := LoadGains(store)
	if err != nil {
		t.Fatalf("LoadGains: %v", err)
	}
	if !gainsClose(got, want) {
		t.Errorf("round trip drifted: got %+v, want %+v", got, want)
	}
}

func TestLoadGainsFreshStore(t *testing.T) {
	if _, err := LoadGains(NewMemStore()); err != ErrNotFound {
		t.Errorf("fresh store: err = %v, want ErrNotFound", err)
	}
}

func TestLoadGainsRequiresLearnedFlag(t *testing.T) {
	store := NewMemStore()
	if err := SaveGains(store, DefaultGains()); err != nil {
		t.Fatalf("SaveGains: %v", err)
	}

	// Clearing the flag hides the stored values: a set that was never
	// learned must read as absent even if blobs exist.
	if err := store.SetU8(keyPidLearned, 0); err != nil {
		t.Fatalf("SetU8: %v", err)
	}
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := LoadGains(store); err != ErrNotFound {
		t.Errorf("unset learned flag: err = %v, want ErrNotFound", err)
	}
}

func TestEraseGains(t *testing.T) {
	store := NewMemStore()
	if err := SaveGains(store, DefaultGains()); err != nil {
		t.Fatalf("SaveGains: %v", err)
	}
	if err := EraseGains(store); err != nil {
		t.Fatalf("EraseGains: %v", err)
	}
	if _, err := LoadGains(store); err != ErrNotFound {
		t.Errorf("after erase: err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreStagedCommit(t *testing.T) {
	store := NewMemStore()

	if err := store.SetU8("k", 7); err != nil {
		t.Fatalf("SetU8: %v", err)
	}
	// Staged but not committed: reads still miss.
	if _, err := store.GetU8("k"); err != ErrNotFound {
		t.Errorf("uncommitted write visible: err = %v", err)
	}

	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	v, err := store.GetU8("k")
	if err != nil || v != 7 {
		t.Errorf("after commit: v=%d err=%v", v, err)
	}
}

func TestMemStoreFailedCommit(t *testing.T) {
	store := NewMemStore()
	if err := store.SetU8("k", 1); err != nil {
		t.Fatalf("SetU8: %v", err)
	}
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	store.FailCommit = true
	if err := store.SetU8("k", 2); err != nil {
		t.Fatalf("SetU8: %v", err)
	}
	if err := store.Commit(); err == nil {
		t.Fatal("forced commit failure did not error")
	}
	if v, _ := store.GetU8("k"); v != 1 {
		t.Errorf("failed commit changed committed value: %d", v)
	}
}

func TestSaveGainsCommitFailure(t *testing.T) {
	store := NewMemStore()
	if err := SaveGains(store, DefaultGains()); err != nil {
		t.Fatalf("SaveGains: %v", err)
	}

	store.FailCommit = true
	bad := Gains{Kp: 1.5, Ki: 0.5, Kd: 0.1, OutputMax: 99}
	if err := SaveGains(store, bad); err == nil {
		t.Fatal("SaveGains with failing commit did not error")
	}

	// Stored set stays the previous one.
	got, err := LoadGains(store)
	if err != nil {
		t.Fatalf("LoadGains: %v", err)
	}
	if !gainsClose(got, DefaultGains()) {
		t.Errorf("failed save corrupted store: %+v", got)
	}
}

func TestFloatBlobPrecision(t *testing.T) {
	store := NewMemStore()
	values := []float64{0.0, 0.05, 0.3, 1.0 / 3.0, 2.0, 48.0, 99.99}
	for _, v := range values {
		if err := setFloat(store, "f", v); err != nil {
			t.Fatalf("setFloat(%v): %v", v, err)
		}
		if err := store.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, err := getFloat(store, "f")
		if err != nil {
			t.Fatalf("getFloat: %v", err)
		}
		// Storage is float32: compare at that precision.
		if float32(got) != float32(v) {
			t.Errorf("blob round trip: got %v, want %v", got, v)
		}
	}
}
