package arraydb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsConnectionError(t *testing.T) {
	require.False(t, IsConnectionError(nil))
	require.False(t, IsConnectionError(errors.New("syntax error near 'SELECT'")))
	require.True(t, IsConnectionError(errors.New("SCIDB_LE_CANT_SEND_RECEIVE: connection reset")))
	require.True(t, IsConnectionError(errors.New("SCIDB_LE_NO_QUORUM")))
}
