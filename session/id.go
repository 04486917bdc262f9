package session

import (
	"errors"

	"github.com/oklog/ulid/v2"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func ParseId(idStr string) (Id, error) {
	id, err := ulid.ParseStrict(idStr)
	if err != nil {
		return Id{}, errors.New("Id must be a valid ulid")
	}
	return Id(id), nil
}

func (self Id) String() string {
	return ulid.ULID(self).String()
}
