package config

import "os"

// Config holds server configuration, sourced from the environment.
type Config struct {
	HTTPPort  string
	RedisAddr string // empty disables the live leaderboard
	MongoURI  string // empty disables the Mongo corpus source
	MongoDB   string
}

func Load() *Config {
	return &Config{
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		MongoURI:  os.Getenv("MONGO_URI"),
		MongoDB:   getEnv("MONGO_DB", "typerace"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
