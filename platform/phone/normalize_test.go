package phone

import "testing"

func TestNormalizeE164KenyanFormats(t *testing.T) {
	cases := map[string]string{
		"0712345678":             "+254712345678",
		"+254 712 345 678":       "+254712345678",
		"254712345678":           "+254712345678",
		"whatsapp:+254712345678": "+254712345678",
		"  ":                     "",
		"not a number":           "not a number",
	}
	for in, want := range cases {
		if got := NormalizeE164(in); got != want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+254 (700) 000-001"); got != "254700000001" {
		t.Fatalf("unexpected digits %q", got)
	}
}
