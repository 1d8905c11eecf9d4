package x402

import (
	"testing"
	"time"
)

func TestDefaultTimeouts(t *testing.T) {
	if DefaultTimeouts.VerifyTimeout != 5*time.Second {
		t.Errorf("VerifyTimeout = %v", DefaultTimeouts.VerifyTimeout)
	}
	if DefaultTimeouts.SettleTimeout != 60*time.Second {
		t.Errorf("SettleTimeout = %v", DefaultTimeouts.SettleTimeout)
	}
	if DefaultTimeouts.RequestTimeout != 120*time.Second {
		t.Errorf("RequestTimeout = %v", DefaultTimeouts.RequestTimeout)
	}
}

func TestTimeoutConfigCopyOnWrite(t *testing.T) {
	custom := DefaultTimeouts.
		WithVerifyTimeout(time.Second).
		WithSettleTimeout(10 * time.Second).
		WithRequestTimeout(20 * time.Second)

	if custom.VerifyTimeout != time.Second ||
		custom.SettleTimeout != 10*time.Second ||
		custom.RequestTimeout != 20*time.Second {
		t.Errorf("custom timeouts not applied: %+v", custom)
	}

	// The package default must be untouched.
	if DefaultTimeouts.VerifyTimeout != 5*time.Second {
		t.Error("DefaultTimeouts was mutated")
	}
}
