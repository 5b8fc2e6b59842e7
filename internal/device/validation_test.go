package device

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "hex identifier",
			input:   "a1b2c3d4e5f6",
			wantErr: nil,
		},
		{
			name:    "hyphenated identifier",
			input:   "thermo-101",
			wantErr: nil,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "at max length",
			input:   strings.Repeat("a", maxDeviceIDLength),
			wantErr: nil,
		},
		{
			name:    "exceeds max length",
			input:   strings.Repeat("a", maxDeviceIDLength+1),
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "embedded space",
			input:   "room 12",
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "control character",
			input:   "dev\x00ice",
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceID(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDeviceID(%q) = %v, want nil", tt.input, err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDeviceID(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormaliseRegistration(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		want    RegisterRequest
		wantErr error
	}{
		{
			name: "kind defaults to generic",
			req:  RegisterRequest{DeviceID: "dev-1"},
			want: RegisterRequest{DeviceID: "dev-1", Kind: KindGeneric},
		},
		{
			name: "room trimmed and network canonicalised",
			req: RegisterRequest{
				DeviceID: "dev-1",
				Kind:     KindThermostat,
				RoomID:   "  12 ",
				Network:  Network{IPAddress: " 192.168.1.20 ", MACAddress: "AA-BB-CC-DD-EE-FF"},
			},
			want: RegisterRequest{
				DeviceID: "dev-1",
				Kind:     KindThermostat,
				RoomID:   "12",
				Network:  Network{IPAddress: "192.168.1.20", MACAddress: "aa:bb:cc:dd:ee:ff"},
			},
		},
		{
			name: "ipv6 address",
			req:  RegisterRequest{DeviceID: "dev-1", Network: Network{IPAddress: "FE80::1"}},
			want: RegisterRequest{DeviceID: "dev-1", Kind: KindGeneric, Network: Network{IPAddress: "fe80::1"}},
		},
		{
			name:    "unknown kind",
			req:     RegisterRequest{DeviceID: "dev-1", Kind: "toaster"},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "bad ip",
			req:     RegisterRequest{DeviceID: "dev-1", Network: Network{IPAddress: "300.1.1.1"}},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "bad mac",
			req:     RegisterRequest{DeviceID: "dev-1", Network: Network{MACAddress: "not-a-mac"}},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "room too long",
			req:     RegisterRequest{DeviceID: "dev-1", RoomID: strings.Repeat("9", maxRoomIDLength+1)},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "missing device id",
			req:     RegisterRequest{Kind: KindThermostat},
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := normaliseRegistration(&req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("normaliseRegistration() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("normaliseRegistration() error = %v", err)
			}
			if req != tt.want {
				t.Errorf("normaliseRegistration() = %+v, want %+v", req, tt.want)
			}
		})
	}
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range AllKinds() {
		if !k.IsValid() {
			t.Errorf("%q.IsValid() = false", k)
		}
	}
	if Kind("").IsValid() || Kind("THERMOSTAT").IsValid() {
		t.Error("empty and mis-cased kinds must be invalid")
	}
}
