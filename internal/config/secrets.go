package config

// Redacted returns a copy of the Config with credential material masked so
// the whole struct can be logged at startup without leaking secrets.
func (c Config) Redacted() Config {
	out := c
	out.Kalshi.ApiKeyID = redact(c.Kalshi.ApiKeyID)
	out.Postgres.DSN = redact(c.Postgres.DSN)
	out.Postgres.Password = redact(c.Postgres.Password)
	out.ClickHouse.DSN = redact(c.ClickHouse.DSN)
	out.Redis.Password = redact(c.Redis.Password)
	out.S3.AccessKey = redact(c.S3.AccessKey)
	out.S3.SecretKey = redact(c.S3.SecretKey)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
