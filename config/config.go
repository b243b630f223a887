package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is populated from the environment. A .env file in the working
// directory is loaded first when present (dev convenience).
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// mongo | memory. The memory driver keeps everything in-process and is
	// meant for development and tests only.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"rentchat"`

	// Redis mirrors presence for out-of-process readers (the notification
	// channel). Empty addr disables the mirror.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET,required"`

	MediaDir       string `env:"MEDIA_DIR" envDefault:"./media"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL" envDefault:"/media"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"` // 25 MiB

	HeartbeatTTL  time.Duration `env:"HEARTBEAT_TTL" envDefault:"75s"`
	SweepEvery    time.Duration `env:"SWEEP_EVERY" envDefault:"10s"`
	SendQueueSize int           `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"60s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
