package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MonitorAddress string `mapstructure:"monitor_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig 模拟引擎的运行参数
type GameConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	AutosaveInterval   time.Duration `mapstructure:"autosave_interval"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	AIPreActivation    int           `mapstructure:"ai_pre_activation_ticks"`
	AIMinDelayTicks    int           `mapstructure:"ai_min_delay_ticks"`
	AIMaxDelayTicks    int           `mapstructure:"ai_max_delay_ticks"`
	AIAggressiveness   int           `mapstructure:"ai_aggressiveness"`
	AIDecisionBudgetMS int           `mapstructure:"ai_decision_budget_ms"`
	StartingAssets     int64         `mapstructure:"starting_assets"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("game.tick_interval", 100*time.Millisecond)
	viper.SetDefault("game.grace_period", 10*time.Minute)
	viper.SetDefault("game.autosave_interval", 30*time.Second)
	viper.SetDefault("game.idle_timeout", 5*time.Minute)
	viper.SetDefault("game.ai_pre_activation_ticks", 50)
	viper.SetDefault("game.ai_min_delay_ticks", 10)
	viper.SetDefault("game.ai_max_delay_ticks", 80)
	viper.SetDefault("game.ai_aggressiveness", 50)
	viper.SetDefault("game.ai_decision_budget_ms", 50)
	viper.SetDefault("game.starting_assets", 1_000_000)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
