package domain

import (
	"testing"
	"time"
)

func TestOptZeroValueIsNotProvided(t *testing.T) {
	var o Opt[string]
	if o.Provided() {
		t.Fatal("zero Opt reports provided")
	}
	if v, ok := o.Get(); ok || v != "" {
		t.Fatalf("Get = (%q, %v), want zero and false", v, ok)
	}
	if v, ok := Set("x").Get(); !ok || v != "x" {
		t.Fatalf("Get = (%q, %v), want (x, true)", v, ok)
	}
}

func TestUserUpdateAppliesOnlyProvidedFields(t *testing.T) {
	login := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	u := User{Name: "Dana", Email: "dana@example.com", Role: "manager", LastLoginAt: &login}

	UserUpdate{Name: Set("Dana R")}.Apply(&u)
	if u.Name != "Dana R" {
		t.Fatalf("Name = %q, want Dana R", u.Name)
	}
	if u.Email != "dana@example.com" || u.Role != "manager" {
		t.Fatalf("unset fields changed: %+v", u)
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(login) {
		t.Fatalf("unset pointer field changed: %v", u.LastLoginAt)
	}

	UserUpdate{LastLoginAt: Set[*time.Time](nil)}.Apply(&u)
	if u.LastLoginAt != nil {
		t.Fatal("explicit nil not applied")
	}
}
