package utils

import (
	"fmt"

	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func GenerateID() string {
	id, err := gonanoid.Generate(idAlphabet, 7)
	if err != nil {
		return ""
	}
	return id
}

// GenerateShareCode builds a human-readable share code such as "team-sync-4fK9aQ2".
func GenerateShareCode(name string) string {
	base := slug.Make(name)
	if len(base) > 60 {
		base = base[:60]
	}
	id := GenerateID()
	if base == "" {
		return id
	}
	return fmt.Sprintf("%s-%s", base, id)
}
