package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *GatewayConfig {
	return &GatewayConfig{
		Role: RoleSlave,
		ID:   12,
		CRC:  CRCModbus,
		Schedule: ScheduleConfig{
			DSMin:      1,
			DSMax:      6,
			PageMax:    3,
			PageSize:   3,
			NumSubs:    11,
			AnswLenMax: 3,
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
	}{
		{"bad role", func(c *GatewayConfig) { c.Role = "observer" }},
		{"id out of byte range", func(c *GatewayConfig) { c.ID = 999 }},
		{"bad crc", func(c *GatewayConfig) { c.CRC = "xor" }},
		{"ds_max below ds_min", func(c *GatewayConfig) { c.Schedule.DSMax = 0 }},
		{"page_max out of range", func(c *GatewayConfig) { c.Schedule.PageMax = 99 }},
		{"page_size zero", func(c *GatewayConfig) { c.Schedule.PageSize = 0 }},
		{"answ_len_max zero", func(c *GatewayConfig) { c.Schedule.AnswLenMax = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/does-not-exist.yaml")
	require.Error(t, err) // explicit path that doesn't exist is a real error

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, RoleSlave, cfg.Role)
	assert.Equal(t, CRCModbus, cfg.CRC)
	assert.Equal(t, 1, cfg.Schedule.DSMin)
	assert.Equal(t, 6, cfg.Schedule.DSMax)
	assert.NoError(t, Validate(cfg))
}
