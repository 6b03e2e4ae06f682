// Package settings loads endpoints, secrets and per-account display names from an optional
// config file, a .env file and the environment.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/aliasstore"
)

// Settings is shared by every tool. Environment variables use the upper-cased key
// (VIEWER_BASE_URL, ANTHROPIC_API_KEY, ...).
type Settings struct {
	ViewerBaseURL   string            `mapstructure:"viewer_base_url"`
	BypassSecret    string            `mapstructure:"vercel_automation_bypass_secret"`
	AnthropicAPIKey string            `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string            `mapstructure:"openai_api_key"`
	RedisAddr       string            `mapstructure:"redis_addr"`
	RedisPassword   string            `mapstructure:"redis_password"`
	RedisDB         int               `mapstructure:"redis_db"`
	Companies       []string          `mapstructure:"companies"`
	DisplayNames    map[string]string `mapstructure:"display_names"`
	Model           string            `mapstructure:"model"`
}

var defaultDisplayNames = map[string]string{
	"abbvie":      "AbbVie",
	"astrazeneca": "AstraZeneca",
	"gsk":         "GSK",
	"lilly":       "Eli Lilly",
	"novartis":    "Novartis",
	"regeneron":   "Regeneron",
	"roche":       "Roche",
}

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Load reads settings. path names an optional YAML, JSON or TOML file; empty skips it.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	v := viper.New()
	v.SetDefault("viewer_base_url", aliasstore.DefaultBaseURL)
	v.SetDefault("vercel_automation_bypass_secret", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("companies", aliasstore.DefaultAccounts)
	v.SetDefault("display_names", defaultDisplayNames)
	v.SetDefault("model", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Companies = normalizeCompanies(s.Companies)
	return s, nil
}

func normalizeCompanies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DisplayName returns the configured display name for company, else the name with its first
// letter upper-cased.
func (s Settings) DisplayName(company string) string {
	key := strings.ToLower(strings.TrimSpace(company))
	if name, ok := s.DisplayNames[key]; ok && name != "" {
		return name
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// RequireKey returns the API key for provider or an error naming the missing variable.
func (s Settings) RequireKey(provider string) (string, error) {
	switch provider {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return "", errors.New("missing ANTHROPIC_API_KEY")
		}
		return s.AnthropicAPIKey, nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return "", errors.New("missing OPENAI_API_KEY")
		}
		return s.OpenAIAPIKey, nil
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}
