package tarantool_queue

import (
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	log.SetOutput(io.Discard)

	opts, err := options(map[string]string{"timeout": "3", "user": "tracker", "password": "pw"})
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, time.Second, opts.Reconnect)
	assert.Equal(t, uint(5), opts.MaxReconnects)
	assert.Equal(t, "tracker", opts.User)
	assert.Equal(t, "pw", opts.Pass)

	_, err = options(map[string]string{"max_recons": "many"})
	assert.Error(t, err)
}
