package paychan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iov-one/paychan"
)

func TestVersion(t *testing.T) {
	paychan.GitCommit = ""
	assert.Equal(t, "v0.1.0-dev", paychan.Version())

	paychan.GitCommit = "12345678"
	assert.Equal(t, "v0.1.0-dev 12345678", paychan.Version())
	paychan.GitCommit = ""
}

func TestUserAgent(t *testing.T) {
	paychan.GitCommit = "12345678"
	defer func() { paychan.GitCommit = "" }()
	assert.Equal(t, "paychan/v0.1.0-dev", paychan.UserAgent())
}
