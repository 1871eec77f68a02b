// Package config loads client defaults and logging settings from a YAML
// file, a .env file and ASYNCHTTP_* environment variables, in increasing
// order of precedence.
//
//	cfg, err := config.Load(config.WithConfigFile("asynchttp.yml"))
//	if err != nil { ... }
//	c, err := client.Build(cfg.ClientOptions(os.Stderr)...)
//
// Nested keys map to variables by upper-casing and replacing dots with
// underscores: client.throttle.rps is ASYNCHTTP_CLIENT_THROTTLE_RPS.
package config
