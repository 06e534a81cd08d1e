package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := Config{Device: "/dev/ttyACM0"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)

	cfg, err = Config{Device: "COM3", Baud: 9600, ReadTimeout: time.Second}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, time.Second, cfg.ReadTimeout)

	assert.Equal(t, Config{Device: "x", Baud: DefaultBaud, ReadTimeout: DefaultReadTimeout}, DefaultConfig("x"))
}

func TestConfigRequiresDevice(t *testing.T) {
	_, err := Config{}.withDefaults()
	assert.ErrorIs(t, err, ErrNoDevice)

	_, err = Open(Config{})
	assert.ErrorIs(t, err, ErrNoDevice)
}
