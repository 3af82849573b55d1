/**
 * Copyright (c) 2025 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Kubectl    string `mapstructure:"Kubectl"`
	Kubeconfig string `mapstructure:"Kubeconfig"`
	Context    string `mapstructure:"Context"`
	Namespace  string `mapstructure:"Namespace"`

	PollInterval time.Duration `mapstructure:"PollInterval"`
	WaitTimeout  time.Duration `mapstructure:"WaitTimeout"`
	Retries      int           `mapstructure:"Retries"`
	BackoffLimit int32         `mapstructure:"BackoffLimit"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFile       string `mapstructure:"LogFile"`
	LogMaxSizeMB  int    `mapstructure:"LogMaxSizeMB"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogMaxAgeDays int    `mapstructure:"LogMaxAgeDays"`
}

const (
	EnvPrefix           = "K8S_HELPER"
	MinPollInterval     = time.Second
	DefaultPollInterval = 5 * time.Second
)

var (
	DefaultConfigPath string
	SystemConfigPath  = "/etc/k8s-helper/config.yaml"
)

func init() {
	if home, err := os.UserHomeDir(); err == nil {
		DefaultConfigPath = filepath.Join(home, ".config", "k8s-helper", "config.yaml")
	} else {
		DefaultConfigPath = SystemConfigPath
	}
}

func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("Kubectl", "kubectl")
	v.SetDefault("Kubeconfig", "")
	v.SetDefault("Context", "")
	v.SetDefault("Namespace", "")

	v.SetDefault("PollInterval", DefaultPollInterval)
	v.SetDefault("WaitTimeout", time.Duration(0))
	v.SetDefault("Retries", 3)
	v.SetDefault("BackoffLimit", 0)

	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFile", "")
	v.SetDefault("LogMaxSizeMB", 10)
	v.SetDefault("LogMaxBackups", 3)
	v.SetDefault("LogMaxAgeDays", 28)
}

// LoadConfig reads the config file at path. A missing file at the default
// locations is not an error: defaults and K8S_HELPER_* env vars still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	file := resolveConfigFile(path)
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
		log.Debugf("Loaded config from %s", file)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func resolveConfigFile(path string) string {
	if path != "" && path != DefaultConfigPath {
		return path
	}
	for _, candidate := range []string{DefaultConfigPath, SystemConfigPath} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func validateConfig(cfg *Config) error {
	if cfg.Kubectl == "" {
		return errors.New("Kubectl must not be empty")
	}
	if cfg.PollInterval < MinPollInterval {
		return fmt.Errorf("PollInterval must be at least %v", MinPollInterval)
	}
	if cfg.WaitTimeout < 0 {
		return errors.New("WaitTimeout must not be negative")
	}
	if cfg.Retries < 0 {
		return errors.New("Retries must not be negative")
	}
	if cfg.BackoffLimit < 0 {
		return errors.New("BackoffLimit must not be negative")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}
