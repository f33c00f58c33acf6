package ethereum

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// isRevert reports whether err is a contract revert rather than a transport
// or node failure.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	var de rpc.DataError
	if errors.As(err, &de) && de.ErrorData() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), revertPrefix)
}

// revertReason extracts the Error(string) reason from a revert, preferring
// the ABI-encoded revert data when the node returns it.
func revertReason(err error) string {
	if err == nil {
		return ""
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(strings.ToLower(msg), revertPrefix); i >= 0 {
		rest := strings.TrimSpace(msg[i+len(revertPrefix):])
		return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	}
	return ""
}

// matchesMarker reports whether the revert reason or the error text contains
// any marker, case-insensitively.
func matchesMarker(err error, markers []string) bool {
	if err == nil {
		return false
	}
	haystacks := []string{strings.ToLower(revertReason(err)), strings.ToLower(err.Error())}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		for _, h := range haystacks {
			if strings.Contains(h, m) {
				return true
			}
		}
	}
	return false
}
