package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "national mobile gets country code",
			input: "81 99999-8888",
			want:  "+5581999998888",
		},
		{
			name:  "already e164",
			input: "+5581999998888",
			want:  "+5581999998888",
		},
		{
			name:  "whitespace trimmed before parsing",
			input: "  +5581999998888  ",
			want:  "+5581999998888",
		},
		{
			name:  "unparseable input returned trimmed",
			input: "  not a number  ",
			want:  "not a number",
		},
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeE164(tt.input); got != tt.want {
				t.Errorf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
