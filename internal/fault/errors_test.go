package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op and cause",
			err:  Connection("acquire", errors.New("dial tcp: refused")),
			want: "CONNECTION: acquire: dial tcp: refused",
		},
		{
			name: "cause only",
			err:  &Error{Kind: KindOperation, Err: errors.New("boom")},
			want: "OPERATION: boom",
		},
		{
			name: "op only",
			err:  &Error{Kind: KindConfiguration, Op: "secret missing"},
			want: "CONFIGURATION: secret missing",
		},
		{
			name: "formatted",
			err:  Configurationf("validate", "max_attempts must be >= 1, got %d", 0),
			want: "CONFIGURATION: validate: max_attempts must be >= 1, got 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	cause := errors.New("no such table: users")
	err := fmt.Errorf("fetch users: %w", Operation("query", cause))

	assert.True(t, IsOperation(err))
	assert.False(t, IsConnection(err))
	assert.False(t, IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindOperation, KindOf(err))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", Connection("ping", errors.New("timeout")))

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ping", fe.Op)
	assert.EqualError(t, fe.Err, "timeout")
}
