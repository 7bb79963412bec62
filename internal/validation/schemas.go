package validation

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

var ErrUnknownSchema = errors.New("unknown validation schema")

var (
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	invitePattern   = regexp.MustCompile(`^(https?://)?(www\.)?(discord\.gg|discord\.com/invite)/[A-Za-z0-9-]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{2,32}$`)
)

const (
	discordIDMin = 17
	discordIDMax = 19
)

// Translate resolves a message key for the active locale.
type Translate func(key string) string

// Schemas holds every named form schema.
type Schemas map[string]Schema

func (s Schemas) Get(name string) (Schema, error) {
	schema, ok := s[name]
	if !ok {
		return nil, ErrUnknownSchema
	}
	return schema, nil
}

// DiscordIDRules checks digits first and length second, so "12a" reports
// the numeric message even though it is also too short.
func DiscordIDRules(t Translate) []Rule {
	return []Rule{
		Required(t("validation.discordId.required")),
		Pattern(digitsPattern, t("validation.discordId.numeric")),
		Custom(func(v string) bool {
			n := utf8.RuneCountInString(v)
			return n >= discordIDMin && n <= discordIDMax
		}, t("validation.discordId.length")),
	}
}

// CreateValidationSchemas builds fresh schemas on every call.
func CreateValidationSchemas(t Translate) Schemas {
	return Schemas{
		"unban": {
			"discordId": DiscordIDRules(t),
			"username": {
				Required(t("validation.username.required")),
				Pattern(usernamePattern, t("validation.username.invalid")),
			},
			"banReason": {
				Required(t("validation.banReason.required")),
				MaxLength(500, t("validation.banReason.max")),
			},
			"unbanReason": {
				Required(t("validation.unbanReason.required")),
				MinLength(50, t("validation.unbanReason.min")),
				MaxLength(2000, t("validation.unbanReason.max")),
			},
		},
		"general": {
			"name": {
				Required(t("validation.name.required")),
				MaxLength(100, t("validation.name.max")),
			},
			"email": {
				Required(t("validation.email.required")),
				Pattern(emailPattern, t("validation.email.invalid")),
			},
			"subject": {
				Required(t("validation.subject.required")),
				MaxLength(150, t("validation.subject.max")),
			},
			"message": {
				Required(t("validation.message.required")),
				MinLength(10, t("validation.message.min")),
				MaxLength(2000, t("validation.message.max")),
			},
		},
		"partnership": {
			"discordId": DiscordIDRules(t),
			"serverName": {
				Required(t("validation.serverName.required")),
				MaxLength(100, t("validation.serverName.max")),
			},
			"inviteLink": {
				Required(t("validation.inviteLink.required")),
				Pattern(invitePattern, t("validation.inviteLink.invalid")),
			},
			"memberCount": {
				Required(t("validation.memberCount.required")),
				Pattern(digitsPattern, t("validation.memberCount.numeric")),
			},
			"description": {
				Required(t("validation.description.required")),
				MinLength(30, t("validation.description.min")),
				MaxLength(1500, t("validation.description.max")),
			},
		},
	}
}
