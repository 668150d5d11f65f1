package bot

import (
	"fmt"
	"net/mail"
	"strings"

	"inspirepixel/internal/model"
)

// ParseImageID extracts an image ID from a command argument string.
func ParseImageID(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("image ID is required")
	}
	return fields[0], nil
}

// ParseLoginArgs parses "<email> <password>".
func ParseLoginArgs(args string) (model.Credentials, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return model.Credentials{}, fmt.Errorf("usage: /login <email> <password>")
	}
	if err := checkEmail(fields[0]); err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{Email: fields[0], Password: fields[1]}, nil
}

// ParseRegisterArgs parses "<name...> <email> <password>". The name may
// contain spaces.
func ParseRegisterArgs(args string) (model.Registration, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return model.Registration{}, fmt.Errorf("usage: /register <name> <email> <password>")
	}
	n := len(fields)
	email, password := fields[n-2], fields[n-1]
	if err := checkEmail(email); err != nil {
		return model.Registration{}, err
	}
	return model.Registration{
		Name:     strings.Join(fields[:n-2], " "),
		Email:    email,
		Password: password,
	}, nil
}

func checkEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("invalid email %q", s)
	}
	return nil
}
