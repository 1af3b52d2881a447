package config

import "time"

// WhatsAppMode selects how replies leave the service.
type WhatsAppMode string

const (
	ModeCloud     WhatsAppMode = "cloud"
	ModeEvolution WhatsAppMode = "evolution"
	ModeDevice    WhatsAppMode = "device"
)

// Config is the top-level service configuration, corresponding to supportdesk.yml.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" koanf:"http"`
	Database    DatabaseConfig    `yaml:"database" koanf:"database"`
	WhatsApp    WhatsAppConfig    `yaml:"whatsapp" koanf:"whatsapp"`
	Evolution   EvolutionConfig   `yaml:"evolution" koanf:"evolution"`
	WooCommerce WooCommerceConfig `yaml:"woocommerce" koanf:"woocommerce"`
	OpenAI      OpenAIConfig      `yaml:"openai" koanf:"openai"`
	Tools       ToolsConfig       `yaml:"tools" koanf:"tools"`
	Admin       AdminConfig       `yaml:"admin" koanf:"admin"`
	Queue       QueueConfig       `yaml:"queue" koanf:"queue"`
	Telegram    TelegramConfig    `yaml:"telegram" koanf:"telegram"`
	Widget      WidgetConfig      `yaml:"widget" koanf:"widget"`
	Log         LogConfig         `yaml:"log" koanf:"log"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" koanf:"addr"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" koanf:"max_body_bytes"`
	RateLimit    float64       `yaml:"rate_limit" koanf:"rate_limit"` // requests per second per client
	RateBurst    int           `yaml:"rate_burst" koanf:"rate_burst"`
	ShutdownWait time.Duration `yaml:"shutdown_wait" koanf:"shutdown_wait"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" koanf:"url"`
	MaxConns int32  `yaml:"max_conns" koanf:"max_conns"`
}

type WhatsAppConfig struct {
	Mode             WhatsAppMode  `yaml:"mode" koanf:"mode"`
	AccessToken      string        `yaml:"access_token" koanf:"access_token"`
	PhoneNumberID    string        `yaml:"phone_number_id" koanf:"phone_number_id"`
	VerifyToken      string        `yaml:"verify_token" koanf:"verify_token"`
	AppSecret        string        `yaml:"app_secret" koanf:"app_secret"`
	APIVersion       string        `yaml:"api_version" koanf:"api_version"`
	EnforceSignature bool          `yaml:"enforce_signature" koanf:"enforce_signature"`
	SendTimeout      time.Duration `yaml:"send_timeout" koanf:"send_timeout"`
	Window           time.Duration `yaml:"window" koanf:"window"`
	DeviceStorePath  string        `yaml:"device_store_path" koanf:"device_store_path"`
}

type EvolutionConfig struct {
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
	APIKey   string `yaml:"api_key" koanf:"api_key"`
	Instance string `yaml:"instance" koanf:"instance"`
}

type WooCommerceConfig struct {
	BaseURL        string        `yaml:"base_url" koanf:"base_url"`
	ConsumerKey    string        `yaml:"consumer_key" koanf:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret" koanf:"consumer_secret"`
	Timeout        time.Duration `yaml:"timeout" koanf:"timeout"`
	RetryMax       int           `yaml:"retry_max" koanf:"retry_max"`
}

type OpenAIConfig struct {
	APIKey       string `yaml:"api_key" koanf:"api_key"`
	BaseURL      string `yaml:"base_url" koanf:"base_url"`
	Model        string `yaml:"model" koanf:"model"`
	SystemPrompt string `yaml:"system_prompt" koanf:"system_prompt"`
	Moderation   bool   `yaml:"moderation" koanf:"moderation"`
	MaxToolRound int    `yaml:"max_tool_rounds" koanf:"max_tool_rounds"`
}

type ToolsConfig struct {
	APIKey     string           `yaml:"api_key" koanf:"api_key"`
	Categories map[string]int64 `yaml:"categories" koanf:"categories"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret" koanf:"jwt_secret"`
	Username  string `yaml:"username" koanf:"username"`
	Password  string `yaml:"password" koanf:"password"`
}

type QueueConfig struct {
	Size        int           `yaml:"size" koanf:"size"`
	Workers     int           `yaml:"workers" koanf:"workers"`
	MaxAttempts int           `yaml:"max_attempts" koanf:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" koanf:"backoff"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token" koanf:"bot_token"`
	AlertChatID int64  `yaml:"alert_chat_id" koanf:"alert_chat_id"`
}

type WidgetConfig struct {
	Window time.Duration `yaml:"window" koanf:"window"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Pretty bool   `yaml:"pretty" koanf:"pretty"`
}
