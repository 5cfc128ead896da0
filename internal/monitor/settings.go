package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	hcmultierror "github.com/hashicorp/go-multierror"
)

// Settings mirrors the spec §6 "Settings" table. Validation mirrors the
// teacher's go-playground/validator usage (internal/validation), with
// disk threshold grammar errors (ParseDiskSpaceThreshold) aggregated via
// hashicorp/go-multierror the way jayjanssen/myq-tools aggregates its own
// config errors.
type Settings struct {
	MonitorInterval time.Duration `validate:"required,min=100000000"` // ns; spec ms -> min 100ms

	BackendConnectTimeout time.Duration `validate:"required"`
	BackendReadTimeout    time.Duration `validate:"required"`
	BackendWriteTimeout   time.Duration `validate:"required"`
	BackendConnectAttempts int          `validate:"min=1"`

	DiskSpaceCheckInterval time.Duration // 0 = disabled
	DiskSpaceThreshold     string        // raw "path:percent,*:percent" grammar

	JournalMaxAge time.Duration `validate:"required"`

	Script        string
	ScriptTimeout time.Duration
	Events        EventMask

	Credentials Credentials
}

type Credentials struct {
	User     string
	Password string // decryption is an external collaborator's concern (spec §1 Out of scope)
}

// EventMask is the bitmask of which classified events are eligible for
// script dispatch.
type EventMask uint32

const (
	MaskMasterDown EventMask = 1 << iota
	MaskMasterUp
	MaskSlaveDown
	MaskSlaveUp
	MaskServerDown
	MaskServerUp
	MaskJoinedDown
	MaskJoinedUp
	MaskNdbDown
	MaskNdbUp
	MaskAll = MaskMasterDown | MaskMasterUp | MaskSlaveDown | MaskSlaveUp |
		MaskServerDown | MaskServerUp | MaskJoinedDown | MaskJoinedUp |
		MaskNdbDown | MaskNdbUp
)

// ParsedDiskThreshold is one entry of the disk_space_threshold grammar:
// a path (or "*" wildcard) and a percent-full threshold.
type ParsedDiskThreshold struct {
	Path    string
	Percent int
}

// ParseDiskSpaceThreshold parses the comma-separated "path:percent" /
// "*:percent" grammar (spec §6). Errors are aggregated, not returned on
// first failure, so configure() can report every malformed entry at once.
func ParseDiskSpaceThreshold(raw string) ([]ParsedDiskThreshold, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var result []ParsedDiskThreshold
	var errs *hcmultierror.Error

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			errs = hcmultierror.Append(errs, fmt.Errorf("disk_space_threshold entry %q missing ':'", entry))
			continue
		}
		pct, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			errs = hcmultierror.Append(errs, fmt.Errorf("disk_space_threshold entry %q: %w", entry, err))
			continue
		}
		result = append(result, ParsedDiskThreshold{Path: strings.TrimSpace(parts[0]), Percent: pct})
	}
	if errs != nil {
		return nil, errs
	}
	return result, nil
}
