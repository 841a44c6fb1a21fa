package serializer

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type UUIDSerializer struct{}

func NewUUIDSerializer() *UUIDSerializer {
	return &UUIDSerializer{}
}

func (s *UUIDSerializer) Serialize(from uuid.UUID) (string, error) {
	return from.String(), nil
}

func (s *UUIDSerializer) Deserialize(to string) (uuid.UUID, error) {
	id, err := uuid.Parse(to)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "uuid.Parse failed, value [%s]", to)
	}
	return id, nil
}
