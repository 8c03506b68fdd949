package postgresql

import (
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitRejectsBadTable(t *testing.T) {
	log.SetOutput(io.Discard)

	c := &Connector{}
	assert.Error(t, c.Init(map[string]string{"table": "bus_location where 1=1"}))
	assert.Error(t, c.Init(nil))
	assert.NoError(t, c.Close())
}
