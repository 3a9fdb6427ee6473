/*
Copyright 2025 Stoolap Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package config

import (
	"sync"

	"github.com/spf13/viper"
)

// EngineConfig carries the storage engine tuning knobs
type EngineConfig struct {
	// RowGroupVectorCount is the number of vectors a row group holds
	RowGroupVectorCount int `mapstructure:"rowGroupVectorCount" description:"vectors per row group"`
	// VerifyParallelism shrinks parallel scan units to one vector for testing
	VerifyParallelism bool `mapstructure:"verifyParallelism" description:"one vector per parallel scan unit"`
	// WalSkipWriting disables write-ahead logging of appended rows
	WalSkipWriting bool `mapstructure:"walSkipWriting" description:"skip write ahead logging"`
	// LogLevel is the engine log level
	LogLevel string `mapstructure:"logLevel" description:"log level"`
}

var (
	cfg  *EngineConfig
	once sync.Once
	mu   sync.Mutex
)

const configPath = "./"

func setDefaults(v *viper.Viper) {
	v.SetDefault("rowGroupVectorCount", 8)
	v.SetDefault("verifyParallelism", false)
	v.SetDefault("walSkipWriting", false)
	v.SetDefault("logLevel", "warn")
}

// Load reads the engine config from config.json if present, falling back to
// defaults for every missing key
func Load() *EngineConfig {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)
	setDefaults(v)

	// A missing config file is fine, the defaults apply
	_ = v.ReadInConfig()

	loaded := &EngineConfig{}
	if err := v.Unmarshal(loaded); err != nil {
		panic(err)
	}
	mu.Lock()
	cfg = loaded
	mu.Unlock()
	return loaded
}

// Get returns the engine config, loading it on first use
func Get() *EngineConfig {
	once.Do(func() {
		mu.Lock()
		missing := cfg == nil
		mu.Unlock()
		if missing {
			Load()
		}
	})
	mu.Lock()
	defer mu.Unlock()
	return cfg
}

// Set replaces the engine config, used by tests to pin knobs
func Set(c *EngineConfig) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
	once.Do(func() {})
}
