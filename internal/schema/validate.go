package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	extraKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)
)

func init() {
	validate = validator.New()
}

// Validate checks a record before it is inserted
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return formatValidationError(err)
	}
	for key := range r.Extra {
		if IsFixedField(key) {
			return fmt.Errorf("Extra: field %q shadows a record field", key)
		}
		if !extraKeyPattern.MatchString(key) {
			return fmt.Errorf("Extra: field %q contains invalid characters", key)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: is required", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s], got %q", e.Field(), e.Param(), e.Value()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s: must be an RFC 3339 timestamp, got %q", e.Field(), e.Value()))
		case "ip|hostname_rfc1123":
			msgs = append(msgs, fmt.Sprintf("%s: must be an IP address or hostname, got %q", e.Field(), e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s validation", e.Field(), e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
