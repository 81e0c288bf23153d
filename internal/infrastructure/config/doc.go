// Package config handles loading and validating Dealer Desk Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Resolving the application data directory (~ expansion)
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (hub app key, MQTT password, JWT secret) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - An empty hub.host is valid and runs the relay in offline-only mode
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.SocketURL())
package config
