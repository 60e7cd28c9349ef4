// Package config handles loading and validating HA-RT bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HART_* prefix)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (RT token, HA token, MQTT credentials) should be set
//     via environment variables rather than the YAML file
//   - The config file should have restricted permissions (0600)
//   - The RT endpoint URL additionally passes rt.ValidateEndpoint before any
//     network client is constructed
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.RT.Queue)
package config
