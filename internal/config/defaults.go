package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = 3
	}
	if cfg.API.NumPhrases == 0 {
		cfg.API.NumPhrases = 100
	}
	if cfg.API.Device == "" {
		cfg.API.Device = "all"
	}
	if cfg.Limits.PerSecond == 0 {
		cfg.Limits.PerSecond = 10
	}
	if cfg.Limits.PerHour == 0 {
		cfg.Limits.PerHour = 10000
	}
	if cfg.Limits.PerDay == 0 {
		cfg.Limits.PerDay = 1000
	}
	if cfg.Limits.WaitTimeoutSeconds == 0 {
		cfg.Limits.WaitTimeoutSeconds = 60
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "/usr/local/var/wordstat/data/cache.db"
	}
	if cfg.Cache.TTLDays == 0 {
		cfg.Cache.TTLDays = 7
	}
	if cfg.Cache.SweepIntervalMinutes == 0 {
		cfg.Cache.SweepIntervalMinutes = 10
	}
	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = "on"
	}
	if cfg.Expand.MaxDepth == 0 {
		cfg.Expand.MaxDepth = 1
	}
	if cfg.Expand.TopN == 0 {
		cfg.Expand.TopN = 100
	}
}
