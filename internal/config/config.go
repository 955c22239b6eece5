package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Binding maps a command-line flag to a config key such as "report.type".
type Binding struct {
	Key  string
	Flag *pflag.Flag
}

// Load config into the config struct, config must be a pointer to the config struct.
// The values already in config are the defaults. They are overridden by the file (optional),
// then by environment variables, then by the bound flags that were set.
func Load(file string, config any, bindings ...Binding) error {
	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	for _, b := range bindings {
		if b.Flag == nil || !b.Flag.Changed {
			continue
		}

		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return fmt.Errorf("bind flag %s: %v", b.Flag.Name, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
