package service

import (
	"net/mail"
	"strings"
)

const minPasswordLen = 8

type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TenantInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (in RegisterInput) normalized() RegisterInput {
	return RegisterInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Password:  strings.TrimSpace(in.Password),
	}
}

func (in LoginInput) normalized() LoginInput {
	return LoginInput{
		Email:    strings.TrimSpace(in.Email),
		Password: strings.TrimSpace(in.Password),
	}
}

func (in TenantInput) normalized() TenantInput {
	return TenantInput{
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

func checkEmail(v *ValidationError, email string) {
	if email == "" || !validEmail(email) {
		v.add("email", email, "Email is required")
	}
}

func validateRegister(in RegisterInput) error {
	v := &ValidationError{}
	checkEmail(v, in.Email)
	if in.FirstName == "" {
		v.add("firstName", in.FirstName, "First name is required")
	}
	if in.LastName == "" {
		v.add("lastName", in.LastName, "Last name is required")
	}
	switch {
	case in.Password == "":
		v.add("password", "", "Password is required")
	case len(in.Password) < minPasswordLen:
		v.add("password", "", "Password must be at least 8 characters long")
	}
	return v.orNil()
}

func validateLogin(in LoginInput) error {
	v := &ValidationError{}
	checkEmail(v, in.Email)
	if in.Password == "" {
		v.add("password", "", "Password is required")
	}
	return v.orNil()
}

func validateTenant(in TenantInput) error {
	v := &ValidationError{}
	if in.Name == "" {
		v.add("name", in.Name, "Tenant name is required")
	}
	if in.Address == "" {
		v.add("address", in.Address, "Tenant address is required")
	}
	return v.orNil()
}
