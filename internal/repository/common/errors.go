package common

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation код ошибки PostgreSQL при нарушении уникального индекса.
const uniqueViolation = "23505"

// UniqueViolation возвращает имя нарушенного уникального индекса.
// ok=false, если ошибка другого рода.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
