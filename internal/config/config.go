// Package config loads per-process YAML configuration, grounded on the
// viper usage in the pack's market-making bot (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a YAML file at path into out (a pointer to a struct tagged
// with `mapstructure`), with environment variable overrides under the
// given prefix (e.g. prefix "GATEWAYD" lets GATEWAYD_LISTEN_ADDR override
// listen_addr). A missing file is not an error — out keeps its
// zero/default values, to be filled by command-line flags instead.
func Load(path, envPrefix string, out interface{}) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}
