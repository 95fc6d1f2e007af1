package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "control characters dropped",
			input: "key\x00 under\x07 mat",
			want:  "key under mat",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePurpose(t *testing.T) {
	got := NormalizePurpose("  weekend   trip\n")
	if got != "weekend trip" {
		t.Errorf("NormalizePurpose() = %q, want %q", got, "weekend trip")
	}
}

func TestNormalizeName(t *testing.T) {
	got := NormalizeName("\tDana   Levi ")
	if got != "Dana Levi" {
		t.Errorf("NormalizeName() = %q, want %q", got, "Dana Levi")
	}
}

func TestNormalizeNotes(t *testing.T) {
	got := NormalizeNotes("  fuel at half,\nkeys in glovebox  ")
	if got != "fuel at half, keys in glovebox" {
		t.Errorf("NormalizeNotes() = %q, want %q", got, "fuel at half, keys in glovebox")
	}
}
