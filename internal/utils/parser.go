package utils

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// MapToJSON convert map[string]string to datatypes.JSON. Nil and empty maps
// produce a nil column so audit rows don't store empty objects.
func MapToJSON(data map[string]string) (datatypes.JSON, error) {
	if len(data) == 0 {
		return nil, nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return jsonData, nil
}

// GenerateRandomString generates a random string of specified length using
// crypto/rand. Used for minting access-token ids and secrets.
func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random string: %w", err)
	}

	for i := 0; i < length; i++ {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b), nil
}
