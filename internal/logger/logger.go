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
package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pidb/duckdb/internal/config"
)

var (
	base     zerolog.Logger
	baseOnce sync.Once
)

func level(name string) zerolog.Level {
	switch name {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// New returns the engine logger, initialized once from the engine config
func New() zerolog.Logger {
	baseOnce.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(level(config.Get().LogLevel)).With().Timestamp().Logger()
	})
	return base
}

// For returns the engine logger tagged with a component name
func For(component string) zerolog.Logger {
	return New().With().Str("component", component).Logger()
}
