package repository

import "errors"

var (
	// ErrNotFound возвращается, если лот или учётная запись отсутствуют.
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается, если состояние лота изменилось с момента чтения.
	ErrConflict = errors.New("listing state changed concurrently")
	// ErrInsufficientFunds возвращается, если списание сделает баланс отрицательным.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountExists возвращается при попытке создать учётную запись с занятым логином.
	ErrAccountExists = errors.New("account already exists")
	// ErrListingHasBids возвращается при попытке удалить лот, по которому есть ставки.
	ErrListingHasBids = errors.New("listing has bids")
	// ErrOutOfRange возвращается, если сумма не помещается в NUMERIC(18, 2).
	ErrOutOfRange = errors.New("amount out of range")
)
