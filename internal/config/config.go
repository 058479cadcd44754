package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"robotics-catalog/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	MediaDriverCloudinary = "cloudinary"
	MediaDriverS3         = "s3"
)

type Config struct {
	AppPort string
	AppName string
	AppEnv  string

	MongoURI    string
	MongoDBName string

	MediaDriver        string
	MediaFolder        string
	MediaPublicBaseURL string
	CloudinaryCloud    string
	CloudinaryAPIKey   string
	CloudinarySecret   string
	S3Bucket           string
	S3Region           string

	UploadDir         string
	MaxUploadFiles    int
	MaxUploadBytes    int64
	UploadConcurrency int
	ShutdownTimeout   time.Duration

	RemoteLogHttpURI       string
	RemoteTraceRpcURI      string
	RemoteProfilingHttpURI string
}

// SafeConfig is the loggable view of Config, secrets and URIs with credentials left out.
type SafeConfig struct {
	AppPort                string `json:"app_port"`
	AppName                string `json:"app_name"`
	AppEnv                 string `json:"app_env"`
	MongoDBName            string `json:"mongo_db_name"`
	MediaDriver            string `json:"media_driver"`
	MediaFolder            string `json:"media_folder"`
	UploadDir              string `json:"upload_dir"`
	MaxUploadFiles         int    `json:"max_upload_files"`
	MaxUploadBytes         int64  `json:"max_upload_bytes"`
	UploadConcurrency      int    `json:"upload_concurrency"`
	ShutdownTimeout        string `json:"shutdown_timeout"`
	RemoteLogHttpURI       string `json:"remote_log_http_uri"`
	RemoteTraceRpcURI      string `json:"remote_trace_rpc_uri"`
	RemoteProfilingHttpURI string `json:"remote_profiling_http_uri"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) ToSafeConfig() SafeConfig {
	return SafeConfig{
		AppPort:                c.AppPort,
		AppName:                c.AppName,
		AppEnv:                 c.AppEnv,
		MongoDBName:            c.MongoDBName,
		MediaDriver:            c.MediaDriver,
		MediaFolder:            c.MediaFolder,
		UploadDir:              c.UploadDir,
		MaxUploadFiles:         c.MaxUploadFiles,
		MaxUploadBytes:         c.MaxUploadBytes,
		UploadConcurrency:      c.UploadConcurrency,
		ShutdownTimeout:        c.ShutdownTimeout.String(),
		RemoteLogHttpURI:       c.RemoteLogHttpURI,
		RemoteTraceRpcURI:      c.RemoteTraceRpcURI,
		RemoteProfilingHttpURI: c.RemoteProfilingHttpURI,
	}
}

func toSnake(s string) string {
	var out strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && s[i-1] != '_' {
				out.WriteRune('_')
			}
			out.WriteRune(unicode.ToLower(r))
		} else {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// StructAttrs("data", cfg) -> []slog.Attr{ slog.String("data.app_port", "50000"), ... }
func StructAttrs(prefix string, s any) []slog.Attr {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()

	attrs := make([]slog.Attr, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		key := prefix + "." + jsonKey(t.Field(i))

		switch v.Field(i).Kind() {
		case reflect.String:
			attrs = append(attrs, slog.String(key, v.Field(i).String()))
		case reflect.Int, reflect.Int64, reflect.Int32:
			attrs = append(attrs, slog.Int64(key, v.Field(i).Int()))
		default:
			attrs = append(attrs, slog.Any(key, v.Field(i).Interface()))
		}
	}
	return attrs
}

func jsonKey(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return toSnake(f.Name)
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// Load reads .env (when present) and the process environment. Missing required
// variables are reported together in one error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:                envOr("APP_PORT", "50000"),
		AppName:                envOr("APP_NAME", "robotics-catalog"),
		AppEnv:                 envOr("APP_ENV", "production"),
		MongoURI:               os.Getenv("MONGO_URI"),
		MongoDBName:            os.Getenv("MONGO_DB_NAME"),
		MediaDriver:            strings.ToLower(envOr("MEDIA_DRIVER", MediaDriverCloudinary)),
		MediaFolder:            envOr("MEDIA_FOLDER", "robotics_products"),
		MediaPublicBaseURL:     os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		CloudinaryCloud:        os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinarySecret:       os.Getenv("CLOUDINARY_API_SECRET"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3Region:               os.Getenv("S3_REGION"),
		UploadDir:              envOr("UPLOAD_DIR", filepath.Join(os.TempDir(), "robotics-catalog-uploads")),
		RemoteLogHttpURI:       os.Getenv("REMOTE_LOG_HTTP_URI"),
		RemoteTraceRpcURI:      os.Getenv("REMOTE_TRACE_RPC_URI"),
		RemoteProfilingHttpURI: os.Getenv("REMOTE_PROFILING_HTTP_URI"),
	}

	var errs []error
	var err error
	if cfg.MaxUploadFiles, err = cast.ToIntE(envOr("MAX_UPLOAD_FILES", "5")); err != nil || cfg.MaxUploadFiles < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_FILES must be a positive integer"))
	}
	if cfg.MaxUploadBytes, err = cast.ToInt64E(envOr("MAX_UPLOAD_BYTES", "33554432")); err != nil || cfg.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer"))
	}
	if cfg.UploadConcurrency, err = cast.ToIntE(envOr("UPLOAD_CONCURRENCY", "1")); err != nil || cfg.UploadConcurrency < 1 {
		errs = append(errs, fmt.Errorf("UPLOAD_CONCURRENCY must be a positive integer"))
	}
	if cfg.ShutdownTimeout, err = cast.ToDurationE(envOr("SHUTDOWN_TIMEOUT", "10s")); err != nil || cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be a positive duration"))
	}

	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	require("MONGO_URI", cfg.MongoURI)
	require("MONGO_DB_NAME", cfg.MongoDBName)

	switch cfg.MediaDriver {
	case MediaDriverCloudinary:
		require("CLOUDINARY_CLOUD_NAME", cfg.CloudinaryCloud)
		require("CLOUDINARY_API_KEY", cfg.CloudinaryAPIKey)
		require("CLOUDINARY_API_SECRET", cfg.CloudinarySecret)
	case MediaDriverS3:
		require("S3_BUCKET", cfg.S3Bucket)
		require("S3_REGION", cfg.S3Region)
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_DRIVER %q", cfg.MediaDriver))
	}

	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

var (
	configInstance *Config
	configOnce     sync.Once
)

// Instance loads the configuration once and terminates the process when it is unusable.
func Instance() *Config {
	configOnce.Do(func() {
		log := logger.Instance()

		cfg, err := Load()
		if err != nil {
			log.Error("Invalid configuration", logger.Err(err))
			os.Exit(1)
		}

		if cfg.RemoteLogHttpURI == "" {
			log.Warn("Missing REMOTE_LOG_HTTP_URI will skip sending log")
		}
		if cfg.RemoteTraceRpcURI == "" {
			log.Warn("Missing REMOTE_TRACE_RPC_URI will skip sending trace")
		}
		if cfg.RemoteProfilingHttpURI == "" {
			log.Warn("Missing REMOTE_PROFILING_HTTP_URI will skip sending profiling")
		}

		attrs := StructAttrs("data", cfg.ToSafeConfig())
		anyAttrs := make([]any, len(attrs))
		for i, a := range attrs {
			anyAttrs[i] = a
		}
		log.Info("Configuration loaded successfully", anyAttrs...)

		configInstance = cfg
	})

	return configInstance
}
