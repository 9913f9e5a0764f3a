// Package logger provides structured logging on top of zerolog.
//
// It supports JSON and console output, level configuration, component
// scoped loggers, and a Critical helper for failures that must page
// someone (broker connection loss, failed health probes).
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("rabbitmq")
//	log.Critical("Failed to connect", logger.Fields("error", err))
package logger
