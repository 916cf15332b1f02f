package validate_test

import (
	"testing"

	"github.com/shashiranjanraj/phonedeals/pkg/validate"
)

type signupInput struct {
	FirstName string `json:"firstname" validate:"required,max=50"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,password"`
}

type reviewInput struct {
	Rating  int    `json:"rating"  validate:"required,between=1,5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type listingInput struct {
	Brand string   `json:"brand" validate:"required,in=Samsung,Apple,LG,Sony"`
	Stock *int     `json:"stock" validate:"nullable,gte=0"`
	Price *float64 `json:"price" validate:"nullable,gte=0"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(signupInput{
		FirstName: "Ada",
		Email:     "ada@example.com",
		Password:  "Str0ng!pass",
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(signupInput{})
	for _, f := range []string{"firstname", "email", "password"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("expected %s to be required", f)
		}
	}
}

func TestPasswordRule(t *testing.T) {
	cases := map[string]bool{
		"Str0ng!pass": true,
		"str0ng!pass": false, // no uppercase
		"STR0NG!PASS": false, // no lowercase
		"Strong!pass": false, // no digit
		"Str0ngpass1": false, // no symbol
		"S0!a":        false, // too short
	}
	for pw, ok := range cases {
		msg := validate.Password("password", pw)
		if ok && msg != "" {
			t.Errorf("%q: expected valid, got %q", pw, msg)
		}
		if !ok && msg == "" {
			t.Errorf("%q: expected rejection", pw)
		}
	}
}

func TestBetweenOnNumbers(t *testing.T) {
	for _, r := range []int{1, 3, 5} {
		if errs := validate.Struct(reviewInput{Rating: r}); validate.HasErrors(errs) {
			t.Errorf("rating %d: unexpected errors %v", r, errs)
		}
	}
	for _, r := range []int{0, 6, -1} {
		if errs := validate.Struct(reviewInput{Rating: r}); !validate.HasErrors(errs) {
			t.Errorf("rating %d: expected an error", r)
		}
	}
}

func TestInRuleWithListParam(t *testing.T) {
	if errs := validate.Struct(listingInput{Brand: "LG"}); validate.HasErrors(errs) {
		t.Errorf("unexpected errors: %v", errs)
	}
	errs := validate.Struct(listingInput{Brand: "Nokia"})
	if _, ok := errs["brand"]; !ok {
		t.Error("expected brand to be rejected")
	}
}

func TestNullablePointer(t *testing.T) {
	neg := -2
	if errs := validate.Struct(listingInput{Brand: "Apple"}); validate.HasErrors(errs) {
		t.Errorf("nil pointers should be skipped: %v", errs)
	}
	errs := validate.Struct(listingInput{Brand: "Apple", Stock: &neg})
	if _, ok := errs["stock"]; !ok {
		t.Error("expected negative stock to be rejected")
	}
}
