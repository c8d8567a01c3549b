// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader merges embedded defaults, configuration files, and
// GITFLEET_ prefixed environment variables through Viper, and LoggerFactory
// builds zap loggers for the structured and console formats.
package utils
