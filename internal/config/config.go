package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Telegram struct {
		BotToken         string  `yaml:"bot_token"`
		ChannelID        int64   `yaml:"channel_id"`
		ChannelUsername  string  `yaml:"channel_username"`
		DiscussionChatID int64   `yaml:"discussion_chat_id"`
		Admins           []int64 `yaml:"admins"`
	} `yaml:"telegram"`
	Moderation struct {
		BadwordsFile    string `yaml:"badwords_file"`
		CooldownSeconds int64  `yaml:"cooldown_seconds"`
		WarningLimit    uint   `yaml:"warning_limit"`
	} `yaml:"moderation"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Moderation.CooldownSeconds == 0 {
		config.Moderation.CooldownSeconds = 600
	}
	if config.Moderation.WarningLimit == 0 {
		config.Moderation.WarningLimit = 3
	}

	return config, nil
}

// IsAdmin reports whether the user id is on the administrative allowlist.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
