// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Field limits.
const (
	maxUsernameLength    = 64
	maxTitleLength       = 200
	maxDescriptionLength = 20000
)

// registerForm is the submitted registration form.
type registerForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (f registerForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username,
			validation.Required.Error("Username is required"),
			validation.RuneLength(1, maxUsernameLength).Error("Username is too long"),
		),
		validation.Field(&f.Email, is.EmailFormat.Error("Email address is not valid")),
		validation.Field(&f.Password, validation.Required.Error("Password is required")),
		validation.Field(&f.PasswordConfirm,
			validation.By(func(value any) error {
				if value.(string) != f.Password {
					return errors.New("Passwords do not match")
				}
				return nil
			}),
		),
	)
}

// articleForm is the submitted article editor.
type articleForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (f articleForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title,
			validation.By(notBlank("Title is required")),
			validation.RuneLength(0, maxTitleLength).Error("Title is too long"),
		),
		validation.Field(&f.Description,
			validation.RuneLength(0, maxDescriptionLength).Error("Description is too long"),
		),
	)
}

func notBlank(message string) validation.RuleFunc {
	return func(value any) error {
		if strings.TrimSpace(value.(string)) == "" {
			return errors.New(message)
		}
		return nil
	}
}

// firstError returns one message from a validation error, checking fields in
// form order so the user sees the earliest problem.
func firstError(err error, order ...string) string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	for _, field := range order {
		if fieldErr, ok := errs[field]; ok && fieldErr != nil {
			return fieldErr.Error()
		}
	}
	for _, fieldErr := range errs {
		if fieldErr != nil {
			return fieldErr.Error()
		}
	}
	return "Invalid form data"
}
