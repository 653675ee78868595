// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/cnharvest/logger"
)

/*
	Configuration is loaded in this order:
	ENV -> ~/.config/cnharvest/cnharvest.yml -> defaults
*/

const (
	configSourceBase64 = "$CNHARVEST_CONFIG_BASE64"
	defaultDefenderAPI = "https://api.securitycenter.microsoft.com"
	defaultGraphAPI    = "https://graph.microsoft.com"
)

// Init initializes and loads the cnharvest config
func Init(rootCmd *cobra.Command) {
	cobra.OnInitialize(InitViperConfig)
	// persistent flags are global for the application
	rootCmd.PersistentFlags().StringVar(&UserProvidedPath, "config", "", "Set config file path (default $HOME/.config/cnharvest/cnharvest.yml)")
}

func InitViperConfig() {
	viper.SetConfigType("yaml")

	Path = strings.TrimSpace(UserProvidedPath)
	// base 64 config env setting has always precedence
	if len(os.Getenv("CNHARVEST_CONFIG_BASE64")) > 0 {
		Source = configSourceBase64
		decodedData, err := base64.StdEncoding.DecodeString(os.Getenv("CNHARVEST_CONFIG_BASE64"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not parse base64 config")
		}
		err = viper.ReadConfig(bytes.NewBuffer(decodedData))
		if err != nil {
			log.Fatal().Err(err).Msg("could not read base64 config")
		}
	} else if len(Path) == 0 && len(os.Getenv("CNHARVEST_CONFIG_PATH")) > 0 {
		// fallback to env variable if provided, but only if --config is not used
		Source = "$CNHARVEST_CONFIG_PATH"
		Path = os.Getenv("CNHARVEST_CONFIG_PATH")
	} else if len(Path) != 0 {
		Source = "--config"
	} else {
		Source = "default"
	}

	// check if the default config file is available
	if Path == "" && Source != configSourceBase64 {
		Path = autodetectConfig()
	}

	if Source != configSourceBase64 {
		// we set this here, so that sub commands that rely on writing config, can use the default config
		viper.SetConfigFile(Path)

		// if the file exists, load it
		_, err := AppFs.Stat(Path)
		if err == nil {
			log.Debug().Str("configfile", viper.ConfigFileUsed()).Msg("try to load local config file")
			if err := viper.ReadInConfig(); err == nil {
				LoadedConfig = true
			} else {
				LoadedConfig = false
				log.Error().Err(err).Str("path", Path).Msg("could not read config file")
			}
		}
	}

	// by default it uses console output, for production we may want to set it to json output
	if viper.GetString("log.format") == "json" {
		logger.UseJSONLogging(logger.LogOutputWriter)
	}

	if viper.GetBool("log.color") == true {
		logger.CliCompactLogger(logger.LogOutputWriter)
	}

	// override values with env variables
	viper.SetEnvPrefix("cnharvest")
	// to parse env variables properly we need to replace some chars
	// all hyphens need to be underscores
	// all dots need to be underscores
	replacer := strings.NewReplacer("-", "_", ".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// read in environment variables that match
	viper.AutomaticEnv()
}

func DisplayUsedConfig() {
	// print config file
	if !LoadedConfig && len(UserProvidedPath) > 0 {
		log.Warn().Msg("could not load configuration file " + UserProvidedPath)
	} else if LoadedConfig {
		log.Info().Msg("loaded configuration from " + viper.ConfigFileUsed() + " using source " + Source)
	} else if Source == configSourceBase64 {
		log.Info().Msg("loaded configuration from environment using source " + Source)
	} else {
		log.Info().Msg("no cnharvest configuration file provided, using defaults")
	}
}

func Read() (*Config, error) {
	// load viper config into a struct
	var opts Config
	err := viper.Unmarshal(&opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode into config struct")
	}

	return &opts, nil
}

type Config struct {
	// bearer token for API access
	Token string `json:"token,omitempty" mapstructure:"token"`

	// service endpoints, both default to the worldwide clouds
	DefenderAPI string `json:"defender_api,omitempty" mapstructure:"defender_api"`
	GraphAPI    string `json:"graph_api,omitempty" mapstructure:"graph_api"`

	// client side request budget
	RateRequests int    `json:"rate_requests,omitempty" mapstructure:"rate_requests"`
	RateWindow   string `json:"rate_window,omitempty" mapstructure:"rate_window"`

	// subnet reference table for network enrichment
	ReferenceTable string `json:"reference_table,omitempty" mapstructure:"reference_table"`
	MaskLength     int    `json:"mask_length,omitempty" mapstructure:"mask_length"`
}

// DefenderEndpoint returns the configured Defender API root.
func (c *Config) DefenderEndpoint() string {
	apiEndpoint := c.DefenderAPI

	// fallback to default api if nothing was set
	if apiEndpoint == "" {
		apiEndpoint = defaultDefenderAPI
	}

	return apiEndpoint
}

// GraphEndpoint returns the configured Microsoft Graph API root.
func (c *Config) GraphEndpoint() string {
	apiEndpoint := c.GraphAPI

	if apiEndpoint == "" {
		apiEndpoint = defaultGraphAPI
	}

	return apiEndpoint
}

// Window parses the configured rate window duration. An empty value
// means no request budget is configured.
func (c *Config) Window() (time.Duration, error) {
	if c.RateWindow == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RateWindow)
	if err != nil {
		return 0, errors.Wrap(err, "invalid rate_window duration")
	}
	return d, nil
}
