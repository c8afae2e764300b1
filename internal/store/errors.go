package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrVersionMismatch    = errors.New("schema version mismatch")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrNotInScope         = errors.New("collection not in transaction scope")
	ErrReadOnly           = errors.New("write attempted in read-only transaction")
)

// TransactionError 表示事务因内部操作失败而整体回滚。
// 它匹配 ErrTransactionFailed，同时保留原始错误供 errors.Is/As 使用。
type TransactionError struct {
	Collections []Collection
	Mode        Mode
	Err         error
}

func (e *TransactionError) Error() string {
	names := make([]string, len(e.Collections))
	for i, c := range e.Collections {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s transaction on [%s] aborted: %v", e.Mode, strings.Join(names, ","), e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransactionFailed) match any aborted transaction.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransactionFailed
}

// Abort wraps a failure from inside a transaction. nil stays nil.
func Abort(collections []Collection, mode Mode, err error) error {
	if err == nil {
		return nil
	}
	var existing *TransactionError
	if errors.As(err, &existing) {
		return err
	}
	return &TransactionError{Collections: collections, Mode: mode, Err: err}
}

// Unavailable wraps an open or connection failure.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
