package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"vending-gateway/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	ownerIDRe    = regexp.MustCompile(`^[0-9]{1,20}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("owner_id", validateOwnerID)
		_ = v.RegisterValidation("sellable_plan", validateSellablePlan)
		_ = v.RegisterValidation("credential", validateCredential)
	}
}

// maxCredentialLen bounds one stored unit before encryption.
const maxCredentialLen = 512

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateOwnerID accepts the numeric chat ids owners are known by.
func validateOwnerID(fl validator.FieldLevel) bool {
	return ownerIDRe.MatchString(fl.Field().String())
}

// validateSellablePlan accepts the plans that have inventory.
func validateSellablePlan(fl validator.FieldLevel) bool {
	switch domain.Plan(fl.Field().String()) {
	case domain.PlanFree, domain.PlanPlus, domain.PlanTeam:
		return true
	}
	return false
}

// validateCredential rejects blank or oversized units and control
// characters other than tab, which would break delivery messages.
func validateCredential(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" || len(s) > maxCredentialLen {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			return false
		}
	}
	return true
}

// SanitizeStruct trims and HTML-escapes the top-level string fields of a
// request before they reach notifications or audit details. Slices are left
// untouched so imported credentials are stored byte for byte.
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
				s := sanitize(elem.String())
				elem.SetString(s)
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
