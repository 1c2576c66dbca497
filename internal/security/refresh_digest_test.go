package security

import "testing"

func TestRefreshDigest_Consistent(t *testing.T) {
	d1 := RefreshDigest("refresh-token-123")
	d2 := RefreshDigest("refresh-token-123")
	if d1 != d2 {
		t.Errorf("RefreshDigest not consistent: %q vs %q", d1, d2)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 (SHA-256 hex)", len(d1))
	}
	if d1 == "refresh-token-123" {
		t.Error("digest must not equal the raw token")
	}
}

func TestRefreshDigest_DifferentTokens(t *testing.T) {
	if RefreshDigest("token-1") == RefreshDigest("token-2") {
		t.Error("RefreshDigest produced same digest for different tokens")
	}
}

func TestRefreshDigestMatches(t *testing.T) {
	stored := RefreshDigest("correct-token")
	tests := []struct {
		name   string
		token  string
		digest string
		want   bool
	}{
		{"match", "correct-token", stored, true},
		{"wrong token", "wrong-token", stored, false},
		{"longer digest", "correct-token", "a" + stored, false},
		{"empty token", "", stored, false},
		{"empty digest", "correct-token", "", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshDigestMatches(tt.token, tt.digest); got != tt.want {
				t.Errorf("RefreshDigestMatches = %v, want %v", got, tt.want)
			}
		})
	}
}
