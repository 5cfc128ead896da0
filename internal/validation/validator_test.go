package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct_ServerInput(t *testing.T) {
	tests := []struct {
		name      string
		input     ServerInput
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid server",
			input:     ServerInput{Name: "db-1", Address: "10.0.0.5", Port: 3306},
			wantError: false,
		},
		{
			name:      "name too short is fine",
			input:     ServerInput{Name: "a", Address: "10.0.0.5", Port: 3306},
			wantError: false,
		},
		{
			name:      "name with spaces rejected",
			input:     ServerInput{Name: "db 1", Address: "10.0.0.5", Port: 3306},
			wantError: true,
			errorMsg:  "letters, digits",
		},
		{
			name:      "missing name",
			input:     ServerInput{Address: "10.0.0.5", Port: 3306},
			wantError: true,
			errorMsg:  "name is required",
		},
		{
			name:      "port out of range",
			input:     ServerInput{Name: "db-1", Address: "10.0.0.5", Port: 70000},
			wantError: true,
			errorMsg:  "port must be at most 65535",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(context.Background(), tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStruct_MonitorSettingsInput(t *testing.T) {
	valid := MonitorSettingsInput{
		MonitorIntervalMs:       1000,
		BackendConnectTimeoutMs: 500,
		BackendReadTimeoutMs:    500,
		BackendWriteTimeoutMs:   500,
		BackendConnectAttempts:  3,
		DiskSpaceThreshold:      "/:90,*:80",
		EventMask:               "master_down,master_up,slave_down",
	}
	assert.NoError(t, ValidateStruct(context.Background(), valid))

	tooFast := valid
	tooFast.MonitorIntervalMs = 10
	require.Error(t, ValidateStruct(context.Background(), tooFast))

	badThreshold := valid
	badThreshold.DiskSpaceThreshold = "no-colon-here"
	err := ValidateStruct(context.Background(), badThreshold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path:percent")

	badMask := valid
	badMask.EventMask = "totally_bogus_event"
	err = ValidateStruct(context.Background(), badMask)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event names")
}

func TestValidateDiskThreshold(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"empty is allowed", "", true},
		{"single entry", "/data:80", true},
		{"wildcard entry", "*:90", true},
		{"multiple entries", "/data:80,/var:70,*:95", true},
		{"missing colon", "80", false},
		{"non-numeric percent", "/data:abc", false},
		{"percent out of range", "/data:150", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type s struct {
				V string `validate:"diskthreshold"`
			}
			err := ValidateStruct(context.Background(), s{V: tt.raw})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateEventMask(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"empty is allowed", "", true},
		{"all", "all", true},
		{"known events", "master_down,slave_up", true},
		{"unknown event", "master_down,bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type s struct {
				V string `validate:"eventmask"`
			}
			err := ValidateStruct(context.Background(), s{V: tt.raw})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFormatFieldError(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{
			name: "required field",
			input: struct {
				Field string `validate:"required"`
			}{},
			want: "field is required",
		},
		{
			name: "min length",
			input: struct {
				Field string `validate:"min=5"`
			}{Field: "abc"},
			want: "field must be at least 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
