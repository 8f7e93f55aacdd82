package server

import (
	"net/http"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	s := New(":0", http.NotFoundHandler(), 0)
	if s.WriteTimeout != DefaultWriteTimeout || s.ReadHeaderTimeout == 0 {
		t.Fatalf("timeouts = %+v", s)
	}
}
