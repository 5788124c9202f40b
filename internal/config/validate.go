package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports every invalid field of a configuration.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrOverlapTooLarge is reported when chunk_overlap is not smaller than chunk_size.
var ErrOverlapTooLarge = errors.New("ingest.chunk_overlap must be less than ingest.chunk_size")

// Validate checks field constraints and that chunk_overlap < chunk_size.
func (c *Config) Validate() error {
	var fields []string
	var cause error
	if err := newValidator().Struct(c); err != nil {
		cause = err
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, describe(fe))
			}
		} else {
			fields = append(fields, err.Error())
		}
	}
	if c.Ingest.ChunkSize > 0 && c.Ingest.Overlap() >= c.Ingest.ChunkSize {
		fields = append(fields, fmt.Sprintf("%s (%d >= %d)", ErrOverlapTooLarge.Error(), c.Ingest.Overlap(), c.Ingest.ChunkSize))
		if cause == nil {
			cause = ErrOverlapTooLarge
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields, Err: cause}
}

func describe(fe validator.FieldError) string {
	// Namespace is "Config.<section>.<field>"; drop the root type name.
	name := fe.Namespace()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", name, fe.Value(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s %q must start with %q", name, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", name, fe.Tag(), fe.Param(), fe.Value())
	}
}
