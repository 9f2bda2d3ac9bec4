package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	Port        string
	LogLevel    string
	LogFormat   string
	ChromePath  string
	JWTSecret   string
	MaxUploadMB int64

	AWSRegion     string
	AWSBucketName string
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	Port = getEnv("PORT", "8080")
	LogLevel = getEnv("LOG_LEVEL", "info")
	LogFormat = getEnv("LOG_FORMAT", "json")
	ChromePath = os.Getenv("CHROME_PATH")
	JWTSecret = os.Getenv("JWT_SECRET")

	MaxUploadMB = 10
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			MaxUploadMB = n
		} else {
			log.Printf("Ignoring invalid MAX_UPLOAD_MB %q", v)
		}
	}

	AWSRegion = getEnv("AWS_REGION", "ap-south-1")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")
}

// S3ExportEnabled reports whether result files should be exported to S3
func S3ExportEnabled() bool {
	return AWSBucketName != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
