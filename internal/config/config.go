package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const DefaultPageSize = 10

type Config struct {
	HTTP struct {
		Addr string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		TokenTTL time.Duration
	}
	RabbitMQ struct {
		URL   string
		Queue string
	}
	MinIO struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}
	Upload struct {
		MaxSizeMB         int
		AllowedExtensions []string
	}
	Worker struct {
		Count             int
		UploadTimeout     time.Duration
		ReconcileInterval time.Duration
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("redis.token_ttl", time.Hour)
	v.SetDefault("rabbitmq.queue", "ticket.image.ingest")
	v.SetDefault("minio.bucket", "ticket-images")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("upload.allowed_extensions", []string{"jpg", "jpeg", "png", "gif"})
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.upload_timeout", 30*time.Second)
	v.SetDefault("worker.reconcile_interval", time.Minute)
}

// Load reads conf/config.yaml (or the named file). Every key can be
// overridden with a TICKETIMAGES_SECTION_KEY environment variable,
// and the file is watched for changes.
func Load(name string) (*Config, error) {
	v := viper.New()
	if name != "" {
		v.SetConfigFile(name)
	} else {
		v.AddConfigPath("conf")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("TICKETIMAGES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config file changed", "file", e.Name)
	})
	v.WatchConfig()
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.Database.DSN = v.GetString("database.dsn")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.TokenTTL = v.GetDuration("redis.token_ttl")
	cfg.RabbitMQ.URL = v.GetString("rabbitmq.url")
	cfg.RabbitMQ.Queue = v.GetString("rabbitmq.queue")
	cfg.MinIO.Endpoint = v.GetString("minio.endpoint")
	cfg.MinIO.AccessKey = v.GetString("minio.access_key")
	cfg.MinIO.SecretKey = v.GetString("minio.secret_key")
	cfg.MinIO.Bucket = v.GetString("minio.bucket")
	cfg.MinIO.UseSSL = v.GetBool("minio.use_ssl")
	cfg.Upload.MaxSizeMB = v.GetInt("upload.max_size_mb")
	cfg.Upload.AllowedExtensions = v.GetStringSlice("upload.allowed_extensions")
	cfg.Worker.Count = v.GetInt("worker.count")
	cfg.Worker.UploadTimeout = v.GetDuration("worker.upload_timeout")
	cfg.Worker.ReconcileInterval = v.GetDuration("worker.reconcile_interval")

	if cfg.Upload.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("config: upload.max_size_mb must be positive")
	}
	if cfg.Worker.Count <= 0 {
		return nil, fmt.Errorf("config: worker.count must be positive")
	}
	return cfg, nil
}
