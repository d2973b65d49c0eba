package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/simverify/pkg/config/types"
)

const (
	environmentVariablePrefix = "SIMVERIFY"

	configType = "yaml"
	configName = "config"
)

var (
	environmentVariableReplace = strings.NewReplacer(".", "_")
	configDecoderHook          = viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
)

// Default returns the configuration used when nothing is overridden.
func Default() types.SimverifyConfig {
	return types.Default
}

// FilePath returns the path of the config file in a config directory.
func FilePath(path string) string {
	return filepath.Join(path, fmt.Sprintf("%s.%s", configName, configType))
}

// Load merges the defaults, the config file in path if there is one, and
// SIMVERIFY_ prefixed environment variables, in that order. Relative store
// and blob paths resolve against path.
func Load(path string) (types.SimverifyConfig, error) {
	v := viper.New()
	v.SetConfigType(configType)

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return types.SimverifyConfig{}, err
	}
	if err = v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return types.SimverifyConfig{}, err
	}

	if path != "" {
		file := FilePath(path)
		_, err = os.Stat(file)
		switch {
		case err == nil:
			v.SetConfigFile(file)
			if err = v.MergeInConfig(); err != nil {
				return types.SimverifyConfig{}, fmt.Errorf("reading config file %s: %w", file, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return types.SimverifyConfig{}, err
		}
	}

	v.SetEnvPrefix(environmentVariablePrefix)
	v.SetEnvKeyReplacer(environmentVariableReplace)
	v.AutomaticEnv()

	var out types.SimverifyConfig
	if err = v.Unmarshal(&out, configDecoderHook); err != nil {
		return types.SimverifyConfig{}, err
	}
	if path != "" {
		resolvePaths(path, &out)
	}
	if err = out.Validate(); err != nil {
		return types.SimverifyConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return out, nil
}

func resolvePaths(path string, cfg *types.SimverifyConfig) {
	if cfg.Store.Type == types.StoreTypeSQLite && cfg.Store.DSN != ":memory:" && !filepath.IsAbs(cfg.Store.DSN) {
		cfg.Store.DSN = filepath.Join(path, cfg.Store.DSN)
	}
	if cfg.Blob.Type == types.BlobTypeLocal && !filepath.IsAbs(cfg.Blob.Path) {
		cfg.Blob.Path = filepath.Join(path, cfg.Blob.Path)
	}
}

// Write stores cfg as the config file of path, creating path if needed.
func Write(path string, cfg types.SimverifyConfig) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(FilePath(path), out, 0600)
}

// KeyAsEnvVar returns the environment variable corresponding to a config key
func KeyAsEnvVar(key string) string {
	return strings.ToUpper(
		fmt.Sprintf("%s_%s", environmentVariablePrefix, environmentVariableReplace.Replace(key)),
	)
}
