package validation

import (
	"fmt"
	"regexp"
)

// DocumentIDPattern определяет допустимый формат id документа
// Латинские буквы, цифры, точка, дефис, нижнее подчеркивание; первый символ буква или цифра
// Длина: 1-128 символов
var DocumentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// MaxDocumentIDLen максимальная длина id документа
const MaxDocumentIDLen = 128

// ValidateDocumentID проверяет, что id документа можно использовать как ключ хранилища
// и как часть ключа аварийного снимка
func ValidateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	if len(id) > MaxDocumentIDLen {
		return fmt.Errorf("document id must not exceed %d characters", MaxDocumentIDLen)
	}

	if !DocumentIDPattern.MatchString(id) {
		return fmt.Errorf("document id can only contain letters, numbers, '.', '-' and '_' and must start with a letter or number")
	}

	return nil
}
