package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is everything the composition root needs to wire the service.
type Config struct {
	Port        string
	Environment string

	DatabaseDSN    string
	UseMemoryStore bool

	JWTSecret string

	OTPTTL         time.Duration
	OTPMaxAttempts int

	LocationMinInterval time.Duration
	LocationMaxSpeedKMH float64
	LocationRetention   time.Duration

	PricingBaseFee          float64
	PricingPerKM            float64
	PricingPerKG            float64
	PricingTaxRate          float64
	SurchargeStandard       float64
	SurchargeScheduled      float64
	SurchargeExpress        float64
	SurchargeSameDay        float64

	RabbitMQURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	S3Bucket  string
	AWSRegion string

	OCREndpoint string
	OCRAPIKey   string
	OCRTimeout  time.Duration
}

// Load reads configuration from the environment, with a .env file for local
// development.
func Load() (*Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load(".env")

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("USE_MEMORY_STORE", false)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("OTP_TTL_MINUTES", 10)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 3)
	viper.SetDefault("LOCATION_MIN_INTERVAL_SECONDS", 5)
	viper.SetDefault("LOCATION_MAX_SPEED_KMH", 120.0)
	viper.SetDefault("LOCATION_RETENTION_HOURS", 24)
	viper.SetDefault("PRICING_BASE_FEE", 50.0)
	viper.SetDefault("PRICING_PER_KM", 12.0)
	viper.SetDefault("PRICING_PER_KG", 10.0)
	viper.SetDefault("PRICING_TAX_RATE", 0.18)
	viper.SetDefault("SURCHARGE_STANDARD", 0.0)
	viper.SetDefault("SURCHARGE_SCHEDULED", 20.0)
	viper.SetDefault("SURCHARGE_EXPRESS", 50.0)
	viper.SetDefault("SURCHARGE_SAME_DAY", 80.0)
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("AWS_REGION", "ap-south-1")
	viper.SetDefault("OCR_TIMEOUT_SECONDS", 15)
	viper.AutomaticEnv()

	cfg := &Config{
		Port:        viper.GetString("APP_PORT"),
		Environment: viper.GetString("ENVIRONMENT"),

		DatabaseDSN:    viper.GetString("DATABASE_DSN"),
		UseMemoryStore: viper.GetBool("USE_MEMORY_STORE"),

		JWTSecret: viper.GetString("JWT_SECRET"),

		OTPTTL:         time.Duration(viper.GetInt("OTP_TTL_MINUTES")) * time.Minute,
		OTPMaxAttempts: viper.GetInt("OTP_MAX_ATTEMPTS"),

		LocationMinInterval: time.Duration(viper.GetInt("LOCATION_MIN_INTERVAL_SECONDS")) * time.Second,
		LocationMaxSpeedKMH: viper.GetFloat64("LOCATION_MAX_SPEED_KMH"),
		LocationRetention:   time.Duration(viper.GetInt("LOCATION_RETENTION_HOURS")) * time.Hour,

		PricingBaseFee:     viper.GetFloat64("PRICING_BASE_FEE"),
		PricingPerKM:       viper.GetFloat64("PRICING_PER_KM"),
		PricingPerKG:       viper.GetFloat64("PRICING_PER_KG"),
		PricingTaxRate:     viper.GetFloat64("PRICING_TAX_RATE"),
		SurchargeStandard:  viper.GetFloat64("SURCHARGE_STANDARD"),
		SurchargeScheduled: viper.GetFloat64("SURCHARGE_SCHEDULED"),
		SurchargeExpress:   viper.GetFloat64("SURCHARGE_EXPRESS"),
		SurchargeSameDay:   viper.GetFloat64("SURCHARGE_SAME_DAY"),

		RabbitMQURL: viper.GetString("RABBITMQ_URL"),

		TwilioAccountSID: viper.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  viper.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       viper.GetString("TWILIO_FROM"),

		S3Bucket:  viper.GetString("S3_BUCKET"),
		AWSRegion: viper.GetString("AWS_REGION"),

		OCREndpoint: viper.GetString("OCR_ENDPOINT"),
		OCRAPIKey:   viper.GetString("OCR_API_KEY"),
		OCRTimeout:  time.Duration(viper.GetInt("OCR_TIMEOUT_SECONDS")) * time.Second,
	}
	return cfg, nil
}
