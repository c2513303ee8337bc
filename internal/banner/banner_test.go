package banner

import (
	"bytes"
	"math/rand/v2"
	"testing"
)

func TestLineShape(t *testing.T) {
	tests := []struct {
		name    string
		maxLen  int
		wantMax int
	}{
		{"minimum", 3, 3},
		{"default", 32, 32},
		{"ceiling", 255, 255},
		{"clamped high", 4096, 255},
		{"clamped low", 0, 3},
		{"negative", -7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 500; i++ {
				line := Line(tt.maxLen)

				if len(line) < MinLength || len(line) > tt.wantMax {
					t.Fatalf("len(line) = %d, want within [%d, %d]", len(line), MinLength, tt.wantMax)
				}
				if !bytes.HasSuffix(line, []byte("\r\n")) {
					t.Fatalf("line %q does not end in CRLF", line)
				}
				for _, b := range line[:len(line)-2] {
					if b < ' ' || b > '~' {
						t.Fatalf("filler byte %#x outside printable range in %q", b, line)
					}
				}
				if bytes.HasPrefix(line, idPrefix) {
					t.Fatalf("line %q opens with an identification prefix", line)
				}
			}
		})
	}
}

// TestLineLengthCoversRange makes sure both bounds of the length window
// are actually reachable, not just the interior.
func TestLineLengthCoversRange(t *testing.T) {
	const maxLen = 5
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[len(Line(maxLen))] = true
	}
	for want := MinLength; want <= maxLen; want++ {
		if !seen[want] {
			t.Errorf("length %d never generated in 1000 draws", want)
		}
	}
}

func TestAppendLinePreservesPrefix(t *testing.T) {
	dst := []byte("seed")
	out := AppendLine(dst, 16)

	if !bytes.HasPrefix(out, []byte("seed")) {
		t.Fatalf("AppendLine clobbered existing buffer contents: %q", out)
	}
	line := out[4:]
	if len(line) < MinLength || len(line) > 16 {
		t.Fatalf("appended line length = %d, want within [%d, 16]", len(line), MinLength)
	}
	if !bytes.HasSuffix(line, []byte("\r\n")) {
		t.Fatalf("appended line %q does not end in CRLF", line)
	}
}

// TestSanitizeIdentificationPrefix scripts the random source so the
// generator is forced to produce an "SSH-" opening, and checks it gets
// rewritten. A short "SSH" line without the dash must pass untouched.
func TestSanitizeIdentificationPrefix(t *testing.T) {
	defer func() { randIntN = rand.IntN }()

	tests := []struct {
		name   string
		script []int // first draw picks length, the rest pick filler bytes
		maxLen int
		want   string
	}{
		{
			name:   "rewrites SSH- prefix",
			script: []int{3, 'S' - ' ', 'S' - ' ', 'H' - ' ', '-' - ' '},
			maxLen: 6,
			want:   "XSH-\r\n",
		},
		{
			name:   "keeps dashless SSH intact",
			script: []int{2, 'S' - ' ', 'S' - ' ', 'H' - ' '},
			maxLen: 5,
			want:   "SSH\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := 0
			randIntN = func(int) int {
				v := tt.script[i]
				i++
				return v
			}

			got := Line(tt.maxLen)
			if string(got) != tt.want {
				t.Fatalf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}
