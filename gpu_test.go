package gpuruntime

import "testing"

func TestDim3(t *testing.T) {
	d := Dim3{X: 4, Y: 2, Z: 3}
	if got := d.Size(); got != 24 {
		t.Errorf("Size() = %d, want 24", got)
	}
	if got := d.String(); got != "(4, 2, 3)" {
		t.Errorf("String() = %q, want %q", got, "(4, 2, 3)")
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"7.5", Version{7, 5}, false},
		{"12.0", Version{12, 0}, false},
		{"seven", Version{}, true},
		{"7", Version{}, true},
		{"-1.0", Version{}, true},
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

	if !(Version{7, 5}).AtLeast(Version{7, 0}) || (Version{6, 1}).AtLeast(Version{7, 0}) {
		t.Error("AtLeast ordering broken")
	}
	if !(Version{8, 0}).AtLeast(Version{7, 5}) {
		t.Error("AtLeast must compare major first")
	}
}
