package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Struct tags registered by RegisterTags.
const (
	TagInterfaceName  = "ifname"
	TagPeerName       = "peername"
	TagAddressPattern = "addrpattern"
	TagKey            = "wgkey"
	TagHost           = "endpointhost"
	TagHook           = "hook"
)

// NewValidator returns a validator with the wgadmin tags registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	if err := RegisterTags(v); err != nil {
		// Registration fails only for empty tag names.
		panic(err)
	}
	return v
}

// RegisterTags adds the field rules of this package to v as struct tags.
func RegisterTags(v *validator.Validate) error {
	rules := map[string]func(field, value string) error{
		TagInterfaceName:  InterfaceName,
		TagPeerName:       PeerName,
		TagAddressPattern: AddressPattern,
		TagKey:            Key,
		TagHost:           Host,
		TagHook:           Hook,
	}
	for tag, rule := range rules {
		rule := rule
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.FieldName(), fl.Field().String()) == nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FromValidator converts validator.ValidationErrors into Errors whose
// messages reuse this package's wording.
func FromValidator(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var out Errors
	for _, fe := range verrs {
		if ferr := fieldError(fe); ferr != nil {
			out.Add(ferr)
		} else {
			out.Add(NewResult(fe.Field(), "is invalid", ErrInvalidFormat))
		}
	}
	return out
}

// jsonName reports fields by their JSON name so messages match the payload.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	value := fmt.Sprint(fe.Value())
	if s, ok := fe.Value().(*string); ok && s != nil {
		value = *s
	}
	switch fe.Tag() {
	case TagInterfaceName:
		return InterfaceName(field, value)
	case TagPeerName:
		return PeerName(field, value)
	case TagAddressPattern:
		return AddressPattern(field, value)
	case TagKey:
		return Key(field, value)
	case TagHost:
		return Host(field, value)
	case TagHook:
		return Hook(field, value)
	case "required":
		return NewResult(field, "is required", ErrRequired)
	case "min", "max", "gte", "lte":
		return NewResult(field, "must satisfy "+fe.Tag()+"="+fe.Param(), ErrOutOfRange)
	default:
		return NewResult(field, "failed "+fe.Tag()+" check", ErrInvalidFormat)
	}
}
