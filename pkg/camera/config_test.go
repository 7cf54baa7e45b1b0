package camera

import "testing"

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("DefaultConfig should be valid, got %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{"negative device", func(c *Config) { c.Device = -1 }, 1},
		{"tiny width", func(c *Config) { c.Width = 10 }, 1},
		{"huge height", func(c *Config) { c.Height = 10000 }, 1},
		{"zero quality", func(c *Config) { c.Quality = 0 }, 1},
		{"negative warmup", func(c *Config) { c.Warmup = -1 }, 1},
		{"everything wrong", func(c *Config) {
			c.Width, c.Height, c.Quality = 0, 0, 101
		}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if got := cfg.Validate(); len(got) != tc.errs {
				t.Errorf("Validate() = %v, want %d errors", got, tc.errs)
			}
		})
	}
}

func TestOpenDevice_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	if _, err := OpenDevice(cfg); err == nil {
		t.Error("OpenDevice should reject an invalid config")
	}
}
