package validation

import (
	"errors"
	"testing"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
)

type serverPayload struct {
	Name     string  `json:"name" validate:"ifname"`
	Address  string  `json:"address" validate:"addrpattern"`
	Port     int     `json:"port" validate:"min=1,max=65535"`
	Endpoint string  `json:"endpoint" validate:"omitempty,endpointhost"`
	PostUp   *string `json:"post_up" validate:"omitempty,hook"`
}

func TestValidatorTags(t *testing.T) {
	v := NewValidator()

	ok := serverPayload{Name: "wg0", Address: "10.0.0.x", Port: 51820}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	bad := serverPayload{Name: "wg 0", Address: "10.0.0.0", Port: 0, Endpoint: "host:1"}
	err := FromValidator(v.Struct(bad))
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("want Errors, got %T", err)
	}
	if len(errs) != 4 {
		t.Errorf("want 4 field errors, got %d: %v", len(errs), errs)
	}
	if !apperrors.IsInvalidInput(err) {
		t.Error("validator errors should map to invalid input")
	}

	var r *Result
	if !errors.As(errs[0], &r) || r.Field != "name" {
		t.Errorf("first error should name the json field, got %v", errs[0])
	}
}

func TestValidatorPointerField(t *testing.T) {
	v := NewValidator()
	hook := "echo a\necho b"
	p := serverPayload{Name: "wg0", Address: "10.0.0.x", Port: 1, PostUp: &hook}
	if err := v.Struct(p); err == nil {
		t.Error("multi-line hook behind a pointer should be rejected")
	}
}

func TestValidatorRejectsMultiLineEndpoint(t *testing.T) {
	v := NewValidator()
	p := serverPayload{Name: "wg0", Address: "10.0.0.x", Port: 1, Endpoint: "vpn.example\nPostUp=curl"}
	err := FromValidator(v.Struct(p))
	if !apperrors.IsInvalidInput(err) {
		t.Errorf("endpoint with a newline should be rejected, got %v", err)
	}
}

func TestFromValidatorPassesOtherErrors(t *testing.T) {
	sentinel := errors.New("boom")
	if FromValidator(sentinel) != sentinel {
		t.Error("non-validator errors should pass through")
	}
}
