package nsm

import "errors"

var (
	ErrQueryFailed   = errors.New("nsm: query failed")
	ErrLockFailed    = errors.New("nsm: failed to lock table")
	ErrShiftFailed   = errors.New("nsm: failed to shift boundaries")
	ErrInsertFailed  = errors.New("nsm: failed to insert node")
	ErrDeleteFailed  = errors.New("nsm: failed to delete node")
	ErrCleanupFailed = errors.New("nsm: failed to renumber boundaries")
	ErrNodeNotFound  = errors.New("nsm: node not found")
	ErrCorruptTree   = errors.New("nsm: tree boundaries are corrupt")
	ErrTxRequired    = errors.New("nsm: maintenance requires a transaction")
)
