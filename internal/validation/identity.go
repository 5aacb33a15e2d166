// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

const maxIdentityLen = 128

const zeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeIdentity приводит адреса кошельков вида 0x... к нижнему регистру.
func NormalizeIdentity(s string) model.Identity {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return model.Identity("0x" + strings.ToLower(s[2:]))
	}
	return model.Identity(s)
}

// IsValidIdentity проверяет, что идентификатор непустой, не длиннее 128 байт и без пробелов.
// Адреса с префиксом 0x должны содержать ровно 40 шестнадцатеричных цифр.
func IsValidIdentity(id model.Identity) bool {
	s := string(id)
	if s == "" || len(s) > maxIdentityLen {
		return false
	}

	for _, ch := range s {
		if unicode.IsSpace(ch) || !unicode.IsPrint(ch) {
			return false
		}
	}

	if strings.HasPrefix(s, "0x") {
		if len(s) != len(zeroAddress) {
			return false
		}
		for _, ch := range s[2:] {
			if !isHexDigit(ch) {
				return false
			}
		}
	}

	return true
}

// IsNullIdentity сообщает, является ли идентификатор пустым или нулевым адресом.
func IsNullIdentity(id model.Identity) bool {
	return id == "" || strings.EqualFold(string(id), zeroAddress)
}

func isHexDigit(ch rune) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
