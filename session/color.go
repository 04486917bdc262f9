package session

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewColor returns a generated display color for a participant that did not
// supply one. Colors are opaque display strings with no uniqueness
// guarantee; a generated color can collide with a user-chosen one.
func NewColor() string {
	u := uuid.New()
	return fmt.Sprintf("#%s", hex.EncodeToString(u[:3]))
}
