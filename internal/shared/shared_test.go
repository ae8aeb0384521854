package shared

import (
	"encoding/base64"
	"regexp"
	"testing"
)

func TestIdentifiers(t *testing.T) {
	t.Run("GenerateState", func(t *testing.T) {
		hexPattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
		seen := make(map[string]bool)

		for i := 0; i < 100; i++ {
			state, err := GenerateState()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !hexPattern.MatchString(state) {
				t.Errorf("expected 32 hex characters, got %q", state)
			}
			if seen[state] {
				t.Fatalf("state %q generated twice", state)
			}
			seen[state] = true
		}
	})

	t.Run("GenerateVerifier", func(t *testing.T) {
		verifier := GenerateVerifier()
		raw, err := base64.RawURLEncoding.DecodeString(verifier)
		if err != nil {
			t.Fatalf("verifier should be unpadded base64url: %v", err)
		}
		if len(raw) < 32 {
			t.Errorf("expected at least 256 bits of entropy, got %d bytes", len(raw))
		}
		if GenerateVerifier() == verifier {
			t.Error("expected distinct verifiers")
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected unique ids")
		}
	})
}
