package remote

// BackendType selects the remote store adapter.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer.
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is supported.
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Config holds remote backend configuration.
type Config struct {
	Type        BackendType
	PostgresDSN string
}

// CleanupFunc releases adapter resources.
type CleanupFunc func() error
