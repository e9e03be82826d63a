package dto

import (
	"errors"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagExpiryToken is the validation tag for API key lifetimes.
const TagExpiryToken = "expiry_token"

// MaxIdempotencyKeyLen bounds the Idempotency-Key header.
const MaxIdempotencyKeyLen = 128

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation(TagExpiryToken, validateExpiryToken)
	}
}

// validateExpiryToken accepts 1H, 1D, 1M and 1Y in any case.
func validateExpiryToken(fl validator.FieldLevel) bool {
	_, ok := domain.ParseExpiry(fl.Field().String(), time.Time{})
	return ok
}

// ValidIdempotencyKey reports whether a client-supplied idempotency key is
// usable: alphanumeric, underscore, dash, dot and colon. Empty means the
// header was not sent.
func ValidIdempotencyKey(key string) bool {
	return key == "" || (len(key) <= MaxIdempotencyKeyLen && safeStringRe.MatchString(key))
}

// FailedTag returns the first failing validation tag among tags, or "".
func FailedTag(err error, tags ...string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ""
	}
	for _, tag := range tags {
		for _, fe := range verrs {
			if fe.Tag() == tag {
				return tag
			}
		}
	}
	return ""
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
