package chainstamp

import (
	"fmt"
)

var (
	ErrUnknownNetwork         = fmt.Errorf("unknown network")
	ErrConnectionFailed       = fmt.Errorf("connection failed")
	ErrNotConnected           = fmt.Errorf("not connected")
	ErrNoAccountsAvailable    = fmt.Errorf("no accounts available")
	ErrContractNotInitialized = fmt.Errorf("contract not initialized")
	ErrSigningRejected        = fmt.Errorf("signing rejected")
)

// TxFailedError is returned when a stamp transaction fails at any point
// between submission and finalization. Cause carries the human-readable
// reason reported by the node, the wallet or the dispatch error.
type TxFailedError struct {
	Cause string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction failed: %s", e.Cause)
}

// NewTxFailedError wraps err into a TxFailedError, preserving its message
// as the cause.
func NewTxFailedError(err error) *TxFailedError {
	if err == nil {
		return &TxFailedError{Cause: "unknown"}
	}
	return &TxFailedError{Cause: err.Error()}
}
