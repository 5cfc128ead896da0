package validation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var serverNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var knownEvents = map[string]bool{
	"master_down": true, "master_up": true,
	"slave_down": true, "slave_up": true,
	"server_down": true, "server_up": true,
	"joined_down": true, "joined_up": true,
	"ndb_down": true, "ndb_up": true,
	"all": true,
}

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("server_name", validateServerName)
	_ = validate.RegisterValidation("diskthreshold", validateDiskThreshold)
	_ = validate.RegisterValidation("eventmask", validateEventMask)
}

// ValidateStruct validates any struct with validation tags, used by the
// admin API to reject malformed requests before they reach the registry or
// a Monitor Instance.
func ValidateStruct(ctx context.Context, s interface{}) error {
	if err := validate.StructCtx(ctx, s); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// FormatValidationError converts validator errors to user-friendly messages.
func FormatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(e))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
	}
	return err
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "hostname_port", "ip", "fqdn":
		return fmt.Sprintf("%s must be a valid host address", field)
	case "server_name":
		return fmt.Sprintf("%s must contain only letters, digits, dots, dashes, and underscores", field)
	case "diskthreshold":
		return fmt.Sprintf("%s must be a comma-separated path:percent list, e.g. \"/:90,*:80\"", field)
	case "eventmask":
		return fmt.Sprintf("%s must be a comma-separated list of known event names, or \"all\"", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

// validateServerName restricts monitor server identifiers to the charset
// safe for use as journal and metric label values without escaping.
func validateServerName(fl validator.FieldLevel) bool {
	return serverNamePattern.MatchString(fl.Field().String())
}

// validateDiskThreshold checks the "path:percent,*:percent" grammar. The
// authoritative parser lives in internal/monitor (ParseDiskSpaceThreshold);
// this duplicates only the grammar check so the admin API can reject a bad
// request before it reaches a Monitor Instance.
func validateDiskThreshold(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return false
		}
		pct, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || pct < 0 || pct > 100 {
			return false
		}
	}
	return true
}

// validateEventMask checks a comma-separated event-name list against the
// names the journal codec and script dispatcher recognize.
func validateEventMask(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	for _, name := range strings.Split(raw, ",") {
		if !knownEvents[strings.TrimSpace(name)] {
			return false
		}
	}
	return true
}
