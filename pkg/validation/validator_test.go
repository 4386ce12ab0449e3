package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	// Every input format of the same subscriber maps to one E.164 key.
	for _, in := range []string{"09123456789", "0912 345 6789", "+989123456789", "+98 912 345 6789"} {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, "+989123456789", got, in)
	}
}

func TestNormalizePhoneRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "12", "not-a-phone", "+98000"} {
		_, err := NormalizePhone(in)
		assert.Error(t, err, in)
	}
}
