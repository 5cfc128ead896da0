package validation

// ServerInput is the validated shape of a server add/update request coming
// through the admin API, before it is converted into a backend.ServerRef.
type ServerInput struct {
	Name    string `validate:"required,min=1,max=64,server_name"`
	Address string `validate:"required,hostname_port|ip|fqdn"`
	Port    int    `validate:"required,min=1,max=65535"`
	Version string `validate:"omitempty,max=64"`
}

// MonitorSettingsInput is the validated shape of the settings block of a
// monitor configuration request, mirroring monitor.Settings without
// depending on that package (avoids an import cycle between monitor and
// validation).
type MonitorSettingsInput struct {
	MonitorIntervalMs      int64  `validate:"required,min=100"`
	BackendConnectTimeoutMs int64 `validate:"required,min=1"`
	BackendReadTimeoutMs    int64 `validate:"required,min=1"`
	BackendWriteTimeoutMs   int64 `validate:"required,min=1"`
	BackendConnectAttempts int    `validate:"required,min=1,max=10"`
	DiskSpaceThreshold     string `validate:"omitempty,diskthreshold"`
	EventMask              string `validate:"omitempty,eventmask"`
	Script                 string `validate:"omitempty,max=4096"`
}

// PaginationInput bounds list-style admin API queries (audit history, etc).
type PaginationInput struct {
	Limit  *int    `validate:"omitempty,min=1,max=500"`
	Cursor *string `validate:"omitempty"`
}
