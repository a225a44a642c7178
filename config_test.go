package uart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: OneStopBit,
		BitOrder: LSBFirst,
		Timeout:  50 * time.Millisecond,
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(*Config){
		"zero baud":          func(c *Config) { c.BaudRate = 0 },
		"too few data bits":  func(c *Config) { c.DataBits = 4 },
		"too many data bits": func(c *Config) { c.DataBits = 9 },
		"parity":             func(c *Config) { c.Parity = 7 },
		"stop bits":          func(c *Config) { c.StopBits = 3 },
		"bit order":          func(c *Config) { c.BitOrder = 2 },
		"negative timeout":   func(c *Config) { c.Timeout = -time.Second },
		"negative buffer":    func(c *Config) { c.BufferSize = -1 },
		"huge buffer":        func(c *Config) { c.BufferSize = MaxBufferSize + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_PollInterval(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, 50*time.Millisecond, cfg.pollInterval())
	cfg.Timeout = 0
	require.Equal(t, DefaultTimeout, cfg.pollInterval())
}

func TestConfig_Strings(t *testing.T) {
	require.Equal(t, "odd", ParityOdd.String())
	require.Equal(t, "1.5", OnePointFiveStopBits.String())
	require.Equal(t, "msb-first", MSBFirst.String())
	require.Equal(t, "Parity(9)", Parity(9).String())
}
