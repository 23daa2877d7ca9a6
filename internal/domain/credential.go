package domain

// Credential is one exchange API key/secret pair. Usage accounting (request
// counter, window start) is owned by the credential pool; the credential
// itself never changes during the process lifetime.
type Credential struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// Redacted returns the key with all but the first four characters masked,
// suitable for logging.
func (c Credential) Redacted() string {
	if len(c.Key) <= 4 {
		return "****"
	}
	return c.Key[:4] + "****"
}

// CredentialPool hands out credentials under a per-credential request budget.
// Acquire returns ErrNoCredentialAvailable when every credential is exhausted
// for the current window; callers back off and retry rather than block.
type CredentialPool interface {
	Acquire() (Credential, error)
	Release(cred Credential, used bool)
}
