package memory

import (
	"math"
	"runtime/debug"
	"testing"
	"time"
)

// preserveMemLimit restores the process memory limit after a test mutates it.
func preserveMemLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvUnset(t *testing.T) {
	preserveMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("should not configure without MEMORY_LIMIT or GOMEMLIMIT")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want none", result.Source)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	preserveMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Fatal("expected configuration from MEMORY_LIMIT")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want MEMORY_LIMIT", result.Source)
	}
	limitBytes := float64(1073741824)
	want := int64(limitBytes * DefaultMemoryRatio)
	if result.GoMemLimit != want {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
	}
	if got := debug.SetMemoryLimit(-1); got != want {
		t.Errorf("runtime limit = %d, want %d", got, want)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	preserveMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()

	if result.Ratio != 0.5 {
		t.Errorf("Ratio = %f, want 0.5", result.Ratio)
	}
	if result.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", result.GoMemLimit)
	}
}

func TestConfigureFromEnvBadValues(t *testing.T) {
	preserveMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("unparseable MEMORY_LIMIT should not configure anything")
	}

	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "1.5") // out of range, falls back to default

	result = ConfigureFromEnv()
	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Ratio = %f, want default %f", result.Ratio, DefaultMemoryRatio)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.input); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	preserveMemLimit(t)
	debug.SetMemoryLimit(math.MaxInt64)

	m := NewMonitor(Config{CheckInterval: time.Second})

	if m.ShouldThrottle() {
		t.Error("no limit means no throttling")
	}
	if m.IsPaused() {
		t.Error("no limit means never paused")
	}
	if m.GetUsage() != 0 {
		t.Errorf("GetUsage = %f, want 0", m.GetUsage())
	}
	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused should return immediately when not paused")
	}
}

func TestMonitorThrottleThresholds(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1000,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
	})

	m.mu.Lock()
	m.current = 500
	m.mu.Unlock()
	if m.ShouldThrottle() {
		t.Error("50% usage should not throttle")
	}

	m.mu.Lock()
	m.current = 800
	m.mu.Unlock()
	if !m.ShouldThrottle() {
		t.Error("80% usage should throttle")
	}
	if got := m.GetUsage(); got != 0.8 {
		t.Errorf("GetUsage = %f, want 0.8", got)
	}
}

func TestMonitorWaitIfPausedUnblocks(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1000,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
	})

	m.mu.Lock()
	m.isPaused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitIfPaused()
	}()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	// Simulate recovery
	m.mu.Lock()
	m.isPaused = false
	close(m.pauseChan)
	m.pauseChan = make(chan struct{})
	m.mu.Unlock()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused should report safe to proceed after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock after recovery")
	}
}

func TestMonitorStopUnblocksWaiters(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1000,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
	})

	m.mu.Lock()
	m.isPaused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitIfPaused()
	}()

	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused should report stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock on Stop")
	}
}
