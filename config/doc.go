// Package config loads storesync settings from a TOML file.
//
// String values may reference environment variables as ${VAR}. A referenced
// variable that is not set is an error; $$ produces a literal dollar sign.
//
//	base_url = "https://${SHOP_HOST}/api/v1"
//	request_timeout = "15s"
//
//	[credentials]
//	path = "~/.local/share/storesync/credentials"
//
//	[refresh]
//	policy = "await"
//
//	[cache]
//	stale_time = "5m"
//
//	[fetch]
//	max_attempts = 3
//	initial_delay = "1s"
//
//	[observe]
//	service_name = "storefront-app"
//	log_level = "debug"
//	tracing_exporter = "stdout"
//
// Durations use time.ParseDuration syntax. Missing values take the defaults
// returned by Default.
package config
