package security

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789"
	testRefreshSecret = "test-refresh-secret-9876543210"
)

// NewTestTokenCodec returns a TokenCodec using the embedded test secrets.
// For unit tests only. Callers must not use in production.
func NewTestTokenCodec() (*TokenCodec, error) {
	return NewTokenCodec([]byte(testAccessSecret), []byte(testRefreshSecret), "test-issuer", "test-audience")
}
