package util

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// ReadConfig loads config.yaml from ./data/ (then the working directory) and
// enables WILDSIDE_* environment overrides. A missing file is not an error:
// every key the drivers read has a default or a flag.
func ReadConfig() error {
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("wildside")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return WrapErrorf(err, ErrParse, "reading config file")
	}
	return nil
}
