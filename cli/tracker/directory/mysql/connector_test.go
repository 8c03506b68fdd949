package mysql

import (
	"io"
	"testing"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	log.SetOutput(io.Discard)

	raw := dsn(map[string]string{"host": "db", "user": "tracker", "password": "secret"})

	conf, err := mysql.ParseDSN(raw)
	assert.NoError(t, err)
	assert.Equal(t, "db:3306", conf.Addr)
	assert.Equal(t, "tracker", conf.User)
	assert.Equal(t, "secret", conf.Passwd)
	assert.Equal(t, "bus_tracking", conf.DBName)
	assert.True(t, conf.ParseTime)
}

func TestInitRejectsBadTable(t *testing.T) {
	log.SetOutput(io.Discard)

	c := &Connector{}
	assert.Error(t, c.Init(map[string]string{"table": "bus; drop"}))
	assert.Error(t, c.Init(nil))
	assert.NoError(t, c.Close())
}
