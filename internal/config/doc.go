// Package config loads, normalizes, and validates Foundry's TOML
// configuration.
//
// Load resolves the config file (explicit flag, ~/.config/foundry/config.toml,
// or foundry.toml in the working directory), applies defaults for missing
// values, expands ~ in every path field, and pulls provider credentials from
// the environment (including a .env file) when the file omits them. A missing
// config file is not an error; the defaults describe a usable layout.
package config
