// Package defaults provides embedded copies of the default
// configuration files for the wattdash init subcommand.
package defaults

import _ "embed"

//go:generate sh -c "cp ../../examples/config.example.yaml . && cp ../../examples/env.example ."

//go:embed config.example.yaml
var ConfigYAML []byte

//go:embed env.example
var EnvFile []byte
