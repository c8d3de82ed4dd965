// Package ids выдаёт идентификаторы для записей хранилища.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewSortable возвращает монотонно возрастающий ULID. Используется для ставок,
// чтобы порядок идентификаторов совпадал с порядком их принятия.
func NewSortable() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// New возвращает случайный UUID для лотов и учётных записей.
func New() string {
	return uuid.NewString()
}
