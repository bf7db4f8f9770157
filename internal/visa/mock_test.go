package visa

import (
	"errors"
	"testing"
)

func TestMockLink_FailBinaryAt(t *testing.T) {
	cause := errors.New("timeout")
	link := NewMockLink(nil)
	link.FailBinaryAt = 2
	link.Err = cause

	if _, err := link.QueryBinary(":WAV:DATA?", 4); err != nil {
		t.Fatalf("first binary query error = %v", err)
	}
	_, err := link.QueryBinary(":WAV:DATA?", 4)
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, cause) {
		t.Fatalf("second binary query error = %v, want TransportError wrapping %v", err, cause)
	}
	if got := len(link.BinaryCalls()); got != 2 {
		t.Errorf("BinaryCalls() = %d, want 2", got)
	}
}

func TestMockLink_FailAt(t *testing.T) {
	link := NewMockLink(map[string]string{"*IDN?": "x,y,z,w"})
	link.FailAt = 1

	if _, err := link.Query("*IDN?"); err == nil {
		t.Fatal("expected injected failure on first call")
	}
	if _, err := link.Query("*IDN?"); err != nil {
		t.Fatalf("second call error = %v", err)
	}
}

func TestMockLink_UnscriptedQuery(t *testing.T) {
	link := NewMockLink(nil)
	_, err := link.Query(":WAV:PRE?")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("unscripted query error = %v, want TransportError", err)
	}
}
