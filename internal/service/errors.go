package service

import (
	"errors"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrDuplicateInFlight = errors.New("duplicate request in flight")
	ErrDuplicateKey      = errors.New("duplicate idempotency key")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerDisabled    = errors.New("player disabled")
	ErrInvalidChoice     = errors.New("invalid choice")

	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrWithdrawInFlight  = errors.New("withdrawal already in progress")
)

// isMySQLDuplicateKeyError 唯一键冲突（1062），幂等路径据此识别重复请求
func isMySQLDuplicateKeyError(err error) bool {
	var me *mysqlerr.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
