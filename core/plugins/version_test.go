package plugins

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.2.3", Version{1, 2, 3}, false},
		{"v1.2.3", Version{1, 2, 3}, false},
		{"1.2", Version{1, 2, 0}, false},
		{"2", Version{2, 0, 0}, false},
		{" 0.9.1 ", Version{0, 9, 1}, false},
		{"", Version{}, true},
		{"1.2.3.4", Version{}, true},
		{"1.x", Version{}, true},
		{"1.-1", Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0.0", "10.0.0", -1},
	}
	for _, tt := range tests {
		if got := MustParseVersion(tt.a).Compare(MustParseVersion(tt.b)); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersionSatisfies(t *testing.T) {
	host := MustParseVersion("1.3.0")
	tests := []struct {
		need string
		want bool
	}{
		{"1.0.0", true},
		{"1.3.9", true},
		{"1.4.0", false},
		{"0.9.0", false},
		{"2.0.0", false},
	}
	for _, tt := range tests {
		if got := host.Satisfies(MustParseVersion(tt.need)); got != tt.want {
			t.Errorf("1.3.0 satisfies %s = %v, want %v", tt.need, got, tt.want)
		}
	}
}

func TestConstraints(t *testing.T) {
	cs, err := ParseConstraints(">=1.0, <2, !=1.5.0")
	if err != nil {
		t.Fatalf("ParseConstraints() error = %v", err)
	}
	if got := cs.String(); got != ">=1.0.0,<2.0.0,!=1.5.0" {
		t.Errorf("String() = %q", got)
	}

	tests := []struct {
		v    string
		want bool
	}{
		{"0.9.9", false},
		{"1.0.0", true},
		{"1.5.0", false},
		{"1.9.9", true},
		{"2.0.0", false},
	}
	for _, tt := range tests {
		if got := cs.Allows(MustParseVersion(tt.v)); got != tt.want {
			t.Errorf("Allows(%s) = %v, want %v", tt.v, got, tt.want)
		}
	}

	exact, err := ParseConstraint("1.2")
	if err != nil || exact.Op != "=" {
		t.Fatalf("ParseConstraint(1.2) = %v, %v", exact, err)
	}

	none, err := ParseConstraints("  ")
	if err != nil || !none.Allows(Version{}) {
		t.Errorf("empty constraints should allow everything: %v, %v", none, err)
	}

	if _, err := ParseConstraints(">=1.0,<=x"); err == nil {
		t.Error("expected error for bad constraint")
	}
}
