package currency

import (
	"testing"
)

const validBody = "1111111111111111111111111111111111111111111111111111hifc8npp"

func TestFromAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    Currency
		wantOK  bool
	}{
		{name: "nano", address: "nano_" + validBody, want: NANO, wantOK: true},
		{name: "dogenano", address: "xdg_" + validBody, want: XDG, wantOK: true},
		{name: "banano upper prefix", address: "BAN_" + validBody, want: BAN, wantOK: true},
		{name: "unknown prefix", address: "xrb_" + validBody, wantOK: false},
		{name: "no separator", address: "nano" + validBody, wantOK: false},
		{name: "empty", address: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromAddress(tt.address)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"nano_" + validBody, true},
		{"ban_3" + validBody[1:], true},
		{"nano_2" + validBody[1:], false},
		{"nano_" + validBody[:50], false},
		{"nano_" + validBody[:59] + "0", false},
		{"nano_" + validBody[:59] + "l", false},
		{"foo_" + validBody, false},
	}

	for _, tt := range tests {
		if got := ValidAddress(tt.address); got != tt.want {
			t.Errorf("ValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NANO_" + validBody, "nano_" + validBody},
		{"Ban_" + validBody, "ban_" + validBody},
		{"xdg_" + validBody, "xdg_" + validBody},
		{"no-prefix", "no-prefix"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported(XDG) {
		t.Errorf("expected XDG to be supported")
	}
	if IsSupported("xdg") || IsSupported("BTC") {
		t.Errorf("expected only upper-case supported codes to match")
	}
}

func TestParse(t *testing.T) {
	c, err := Parse(" ban ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != BAN {
		t.Errorf("expected BAN, got %s", c)
	}
	if _, err := Parse("btc"); err == nil {
		t.Errorf("expected error for unsupported currency")
	}
	if BAN.Lower() != "ban" {
		t.Errorf("expected lowercase code, got %s", BAN.Lower())
	}
}
