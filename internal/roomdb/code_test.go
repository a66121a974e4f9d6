package roomdb

import (
	"strings"
	"testing"
)

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeCharset, ch) {
				t.Fatalf("code %q contains %q outside the charset", code, ch)
			}
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Fatalf("suspiciously many collisions: %d unique of 100", len(seen))
	}
}
