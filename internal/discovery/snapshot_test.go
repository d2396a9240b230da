package discovery

import (
	"errors"
	"testing"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	in := []DeviceRecord{
		NewDeviceRecord("A2", "", true),
		NewDeviceRecord("A1", "Phone", false),
	}
	data, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}

	out, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if got := addresses(out); !equalStrings(got, []string{"A2", "A1"}) {
		t.Fatalf("order = %v", got)
	}
	if out[0].Name != nil || !out[0].Bonded {
		t.Errorf("out[0] = %+v", out[0])
	}
	if Caption(out[1]) != "Phone" {
		t.Errorf("out[1] caption = %q", Caption(out[1]))
	}
}

func TestSnapshot_EmptyList(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	if err != nil {
		t.Fatalf("EncodeSnapshot(nil) error = %v", err)
	}
	if string(data) != `{"version":1,"devices":[]}` {
		t.Errorf("EncodeSnapshot(nil) = %s", data)
	}
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `nope`, nil},
		{"unknown version", `{"version":2,"devices":[]}`, ErrUnsupportedSnapshot},
		{"missing version", `{"devices":[]}`, ErrUnsupportedSnapshot},
		{"device without address", `{"version":1,"devices":[{"bonded":true}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.data))
			if err == nil {
				t.Fatal("DecodeSnapshot() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
