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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8, cfg.RowGroupVectorCount)
	assert.False(t, cfg.VerifyParallelism)
	assert.False(t, cfg.WalSkipWriting)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestSetOverrides(t *testing.T) {
	old := Get()
	defer Set(old)

	Set(&EngineConfig{RowGroupVectorCount: 2, VerifyParallelism: true, LogLevel: "debug"})
	cfg := Get()
	assert.Equal(t, 2, cfg.RowGroupVectorCount)
	assert.True(t, cfg.VerifyParallelism)
}
