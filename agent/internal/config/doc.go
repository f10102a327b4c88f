// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Mongo, NewRelic, Agent, Log}: full config tree parsed from YAML
//   - MongoConfig: host URI, database, user, password_env, auth_source,
//     timeout; Password() resolves from the environment
//   - NewRelicConfig: api_url, license_key_env (literal license_key as a
//     fallback), plugin_guid, timeout, tls; Key() resolves the license key
//   - AgentConfig: poll_cadence_secs, host, telemetry_addr
//   - LogConfig: level (debug|info|warn|error), development
//
// Load(path) reads the YAML file, applies defaults (local mongod, 60s
// cadence, 10s timeouts, the public New Relic platform URL), then validates
// with struct tags plus a few hand checks. Errors name the offending key
// the way it is spelled in the file, e.g. "newrelic.plugin_guid is required".
//
// Watch(ctx, path, logger, onChange) uses fsnotify on the containing
// directory and calls onChange with the newly parsed Config. The agent uses
// it to swap the reporter's endpoint and license key without a restart;
// other settings take effect on the next start.
package config
